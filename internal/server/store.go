package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore"
	"github.com/haxdai/SWBPlatform-sub000/internal/triplestore/remote"
)

// StoreAPI exposes triplestores over http, in the format understood by [remote.Store].
type StoreAPI struct {
	// Store returns the store of the given model
	Store func(model string) (triplestore.Store, bool)

	// ReadOnly rejects all writes
	ReadOnly bool

	Logger *slog.Logger
}

// Register registers the store routes underneath prefix.
// prefix must not end with a slash.
func (api *StoreAPI) Register(router *mux.Router, prefix string) {
	router.HandleFunc(prefix+"/{model}/match", api.match).Methods(http.MethodGet)
	router.HandleFunc(prefix+"/{model}/count", api.count).Methods(http.MethodGet)
	router.HandleFunc(prefix+"/{model}/graphs", api.graphs).Methods(http.MethodGet)
	router.HandleFunc(prefix+"/{model}/add", api.add).Methods(http.MethodPost)
	router.HandleFunc(prefix+"/{model}/remove", api.remove).Methods(http.MethodPost)
}

func (api *StoreAPI) store(w http.ResponseWriter, r *http.Request) (triplestore.Store, bool) {
	store, ok := api.Store(mux.Vars(r)["model"])
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	return store, true
}

func (api *StoreAPI) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, triplestore.ErrReadOnly):
		code = http.StatusForbidden
	case errors.Is(err, errBadRequest):
		code = http.StatusBadRequest
	}
	if api.Logger != nil && code == http.StatusInternalServerError {
		api.Logger.Error("store request failed", "path", r.URL.Path, "err", err)
	}
	http.Error(w, err.Error(), code)
}

func (api *StoreAPI) pattern(r *http.Request) (rdf.Pattern, error) {
	if err := r.ParseForm(); err != nil {
		return rdf.Pattern{}, badRequest(err)
	}
	pattern, err := remote.DecodePattern(r.Form)
	if err != nil {
		return rdf.Pattern{}, badRequest(err)
	}
	return pattern, nil
}

func (api *StoreAPI) match(w http.ResponseWriter, r *http.Request) {
	store, ok := api.store(w, r)
	if !ok {
		return
	}
	pattern, err := api.pattern(r)
	if err != nil {
		api.fail(w, r, err)
		return
	}

	stmts, err := triplestore.Collect(r.Context(), store, pattern)
	if err != nil {
		api.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", remote.ContentType)
	w.WriteHeader(http.StatusOK)
	if err := rdf.Encode(w, rdf.NQuads, stmts); err != nil && api.Logger != nil {
		api.Logger.Error("failed to write statements", "err", err)
	}
}

func (api *StoreAPI) count(w http.ResponseWriter, r *http.Request) {
	store, ok := api.store(w, r)
	if !ok {
		return
	}
	pattern, err := api.pattern(r)
	if err != nil {
		api.fail(w, r, err)
		return
	}

	count, err := store.Count(r.Context(), pattern)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, remote.CountResponse{Count: count})
}

func (api *StoreAPI) graphs(w http.ResponseWriter, r *http.Request) {
	store, ok := api.store(w, r)
	if !ok {
		return
	}

	graphs, err := store.Graphs(r.Context())
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, graphs)
}

func (api *StoreAPI) add(w http.ResponseWriter, r *http.Request) {
	if api.ReadOnly {
		api.fail(w, r, triplestore.ErrReadOnly)
		return
	}
	store, ok := api.store(w, r)
	if !ok {
		return
	}

	var stmts []rdf.Statement
	if err := rdf.Decode(r.Body, rdf.NQuads, "", func(stmt rdf.Statement) error {
		stmts = append(stmts, stmt)
		return nil
	}); err != nil {
		api.fail(w, r, badRequest(err))
		return
	}

	if err := store.Add(r.Context(), stmts...); err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, remote.CountResponse{Count: int64(len(stmts))})
}

func (api *StoreAPI) remove(w http.ResponseWriter, r *http.Request) {
	if api.ReadOnly {
		api.fail(w, r, triplestore.ErrReadOnly)
		return
	}
	store, ok := api.store(w, r)
	if !ok {
		return
	}
	pattern, err := api.pattern(r)
	if err != nil {
		api.fail(w, r, err)
		return
	}

	removed, err := store.Remove(r.Context(), pattern)
	if err != nil {
		api.fail(w, r, err)
		return
	}
	writeJSON(w, remote.CountResponse{Count: removed})
}

var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return errors.Join(errBadRequest, err)
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(value)
}
