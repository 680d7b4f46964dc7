// Package remote implements a triplestore that forwards all operations to another node over http.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
)

// ContentType is the content type used for statements on the wire
const ContentType = "application/n-quads"

// Query parameters used to encode patterns
const (
	ParamSubject   = "s"
	ParamPredicate = "p"
	ParamObject    = "o"
	ParamGraph     = "g"
)

// EncodePattern encodes a pattern as url query values.
// Bound terms are encoded using their key.
func EncodePattern(pattern rdf.Pattern) url.Values {
	values := make(url.Values, 4)
	for param, term := range map[string]*rdf.Term{
		ParamSubject:   pattern.Subject,
		ParamPredicate: pattern.Predicate,
		ParamObject:    pattern.Object,
	} {
		if term != nil {
			values.Set(param, term.Key())
		}
	}
	values.Set(ParamGraph, pattern.Graph)
	return values
}

// DecodePattern decodes a pattern encoded with EncodePattern.
// A missing graph parameter matches any graph.
func DecodePattern(values url.Values) (pattern rdf.Pattern, err error) {
	for param, dest := range map[string]**rdf.Term{
		ParamSubject:   &pattern.Subject,
		ParamPredicate: &pattern.Predicate,
		ParamObject:    &pattern.Object,
	} {
		if !values.Has(param) {
			continue
		}
		term, err := rdf.ParseKey(values.Get(param))
		if err != nil {
			return pattern, fmt.Errorf("invalid parameter %q: %w", param, err)
		}
		*dest = &term
	}

	pattern.Graph = rdf.AnyGraph
	if values.Has(ParamGraph) {
		pattern.Graph = values.Get(ParamGraph)
	}
	return pattern, nil
}

// Store is a triplestore served by another node.
type Store struct {
	base   *url.URL
	client *http.Client
}

var _ triplestore.Store = (*Store)(nil)

// ErrStatus is returned when the remote node responds with an unexpected status code
var ErrStatus = errors.New("remote: unexpected status")

// New creates a new remote store for the store endpoint at base, e.g. "http://node:8080/store/admin/".
// When client is nil, http.DefaultClient is used.
func New(base string, client *http.Client) (*Store, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{base: u, client: client}, nil
}

// URL returns the base url of the remote store
func (rs *Store) URL() string {
	return rs.base.String()
}

func (rs *Store) do(ctx context.Context, method, op string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := rs.base.JoinPath(op)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := rs.client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("%w: %s %s: %s: %s", ErrStatus, method, op, res.Status, strings.TrimSpace(string(msg)))
	}
	return res, nil
}

func (rs *Store) getJSON(ctx context.Context, op string, query url.Values, dest any) error {
	res, err := rs.do(ctx, http.MethodGet, op, query, nil, "")
	if err != nil {
		return err
	}
	defer res.Body.Close()

	return json.NewDecoder(res.Body).Decode(dest)
}

func (rs *Store) Add(ctx context.Context, stmts ...rdf.Statement) error {
	if err := triplestore.Validate(stmts); err != nil {
		return err
	}

	var buffer bytes.Buffer
	if err := rdf.Encode(&buffer, rdf.NQuads, stmts); err != nil {
		return err
	}

	res, err := rs.do(ctx, http.MethodPost, "add", nil, &buffer, ContentType)
	if err != nil {
		return err
	}
	return res.Body.Close()
}

// CountResponse is the response of the count and remove endpoints
type CountResponse struct {
	Count int64 `json:"count"`
}

func (rs *Store) Remove(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	res, err := rs.do(ctx, http.MethodPost, "remove", nil, strings.NewReader(EncodePattern(pattern).Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	var response CountResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return 0, err
	}
	return response.Count, nil
}

func (rs *Store) Match(ctx context.Context, pattern rdf.Pattern, f func(rdf.Statement) error) error {
	res, err := rs.do(ctx, http.MethodGet, "match", EncodePattern(pattern), nil, "")
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// buffer the response, so that f may call back into the store
	var stmts []rdf.Statement
	if err := rdf.Decode(res.Body, rdf.NQuads, "", func(stmt rdf.Statement) error {
		stmts = append(stmts, stmt)
		return nil
	}); err != nil {
		return err
	}

	for _, stmt := range stmts {
		if err := f(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (rs *Store) Count(ctx context.Context, pattern rdf.Pattern) (int64, error) {
	var response CountResponse
	err := rs.getJSON(ctx, "count", EncodePattern(pattern), &response)
	return response.Count, err
}

func (rs *Store) Graphs(ctx context.Context) ([]string, error) {
	var graphs []string
	if err := rs.getJSON(ctx, "graphs", nil, &graphs); err != nil {
		return nil, err
	}
	if graphs == nil {
		graphs = []string{}
	}
	return graphs, nil
}

// Close releases idle connections of the underlying client.
// The remote store itself is not affected.
func (rs *Store) Close() error {
	rs.client.CloseIdleConnections()
	return nil
}
