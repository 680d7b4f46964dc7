package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
)

// model returns the model named in the request, or writes a 404
func (server *Server) model(w http.ResponseWriter, r *http.Request) (*semantic.Model, bool) {
	model, ok := server.Platform.Model(mux.Vars(r)["model"])
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	return model, true
}

// failObject writes the error returned when loading an object
func (server *Server) failObject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, semantic.ErrNotFound), errors.Is(err, semantic.ErrClassNotFound):
		http.NotFound(w, r)
	default:
		server.Logger.Error("request failed", "path", r.URL.Path, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type modelJSON struct {
	Name      string              `json:"name"`
	Namespace string              `json:"namespace"`
	Graph     string              `json:"graph,omitempty"`
	Cache     semantic.CacheStats `json:"cache"`
}

func (server *Server) jsonModels(w http.ResponseWriter, r *http.Request) {
	models := server.Platform.Models()
	result := make([]modelJSON, len(models))
	for i, model := range models {
		result[i] = modelJSON{
			Name:      model.Name,
			Namespace: model.Namespace,
			Graph:     model.Graph,
			Cache:     model.Cache.Stats(),
		}
	}
	writeJSON(w, result)
}

type classJSON struct {
	URI        string   `json:"uri"`
	Label      string   `json:"label"`
	Super      []string `json:"super,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

func (server *Server) jsonClasses(w http.ResponseWriter, r *http.Request) {
	if _, ok := server.model(w, r); !ok {
		return
	}

	lang := language(r)
	classes := server.Platform.Ontology.Classes()
	result := make([]classJSON, len(classes))
	for i, class := range classes {
		result[i] = classJSON{URI: class.URI, Label: class.Label(lang)}
		for _, super := range class.SuperClasses(true) {
			result[i].Super = append(result[i].Super, super.URI)
		}
		for _, property := range class.Properties() {
			result[i].Properties = append(result[i].Properties, property.URI)
		}
	}
	writeJSON(w, result)
}

func (server *Server) jsonInstances(w http.ResponseWriter, r *http.Request) {
	model, ok := server.model(w, r)
	if !ok {
		return
	}

	inferred, _ := strconv.ParseBool(r.URL.Query().Get("inferred"))
	objects, err := model.Instances(r.Context(), mux.Vars(r)["class"], inferred)
	if err != nil {
		server.failObject(w, r, err)
		return
	}

	uris := make([]string, len(objects))
	for i, object := range objects {
		uris[i] = object.URI()
	}
	writeJSON(w, uris)
}

type objectJSON struct {
	URI        string                `json:"uri"`
	Label      string                `json:"label"`
	Class      string                `json:"class,omitempty"`
	Types      []string              `json:"types"`
	Properties map[string][]termJSON `json:"properties"`
}

type termJSON struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

func newTermJSON(term rdf.Term) termJSON {
	return termJSON{
		Type:     term.Kind.String(),
		Value:    term.Value,
		Lang:     term.Lang,
		Datatype: term.Datatype,
	}
}

func newObjectJSON(ctx context.Context, object *semantic.Object, lang string) (result objectJSON, err error) {
	result.URI = object.URI()
	if result.Label, err = object.DisplayName(ctx, lang); err != nil {
		return result, err
	}
	if class, err := object.Class(ctx); err == nil {
		result.Class = class.URI
	}
	if result.Types, err = object.Types(ctx); err != nil {
		return result, err
	}

	stmts, err := object.Statements(ctx)
	if err != nil {
		return result, err
	}
	result.Properties = make(map[string][]termJSON)
	for _, stmt := range stmts {
		result.Properties[stmt.Predicate.Value] = append(result.Properties[stmt.Predicate.Value], newTermJSON(stmt.Object))
	}
	return result, nil
}

func (server *Server) jsonObject(w http.ResponseWriter, r *http.Request) {
	model, ok := server.model(w, r)
	if !ok {
		return
	}

	object, err := model.Object(r.Context(), mux.Vars(r)["uri"])
	if err != nil {
		server.failObject(w, r, err)
		return
	}

	result, err := newObjectJSON(r.Context(), object, language(r))
	if err != nil {
		server.failObject(w, r, err)
		return
	}
	writeJSON(w, result)
}

// resolve redirects to the canonical object of an alias
func (server *Server) resolve(w http.ResponseWriter, r *http.Request) {
	model, ok := server.model(w, r)
	if !ok {
		return
	}

	object, err := model.Object(r.Context(), mux.Vars(r)["uri"])
	if err != nil {
		server.failObject(w, r, err)
		return
	}

	target := "/api/v1/models/" + url.PathEscape(model.Name) + "/object?uri=" + url.QueryEscape(object.URI())
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

type nodesJSON struct {
	Node  string   `json:"node,omitempty"`
	Peers []string `json:"peers"`
}

func (server *Server) jsonNodes(w http.ResponseWriter, r *http.Request) {
	result := nodesJSON{Peers: []string{}}
	if center := server.Platform.Messages; center != nil {
		result.Node = center.Node()
		result.Peers = center.Nodes()
	}
	writeJSON(w, result)
}

// language returns the preferred language of labels
func language(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	return "en"
}
