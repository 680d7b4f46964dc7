package server

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf/vocab"
	"github.com/haxdai/SWBPlatform-sub000/internal/semantic"
	"github.com/haxdai/SWBPlatform-sub000/pkg/htmlx"
)

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ template "title" . }}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 0.25em 0.5em; text-align: left; vertical-align: top; }
code { color: #555; }
</style>
</head>
<body>
<nav><a href="/">Models</a>{{ with .Model }} / <a href="/models/{{ .Name }}">{{ .Name }}</a>{{ end }}</nav>
{{ template "content" . }}
</body>
</html>
`

const indexHTML = `
{{ define "title" }}Models{{ end }}
{{ define "content" }}
<h1>Models</h1>
<ul>
{{ range .Models }}<li><a href="/models/{{ .Name }}">{{ .Name }}</a> <code>{{ .Namespace }}</code></li>
{{ end }}</ul>
{{ end }}
`

const modelHTML = `
{{ define "title" }}{{ .Model.Name }}{{ end }}
{{ define "content" }}
<h1>{{ .Model.Name }}</h1>
<p><code>{{ .Model.Namespace }}</code></p>
<h2>Classes</h2>
<ul>
{{ range .Classes }}<li><a href="{{ classURL $.Model . }}">{{ .Label $.Lang }}</a> <code>{{ .URI }}</code></li>
{{ end }}</ul>
{{ end }}
`

const classHTML = `
{{ define "title" }}{{ .Class.Label .Lang }}{{ end }}
{{ define "content" }}
<h1>{{ .Class.Label .Lang }}</h1>
<p><code>{{ .Class.URI }}</code></p>
{{ with .Class.SuperClasses true }}<p>Subclass of {{ range . }}<a href="{{ classURL $.Model . }}">{{ .Label $.Lang }}</a> {{ end }}</p>{{ end }}
<h2>Instances</h2>
<ul>
{{ range .Instances }}<li><a href="{{ objectURL $.Model .URI }}">{{ .Label }}</a></li>
{{ else }}<li>None</li>
{{ end }}</ul>
{{ end }}
`

const objectHTML = `
{{ define "title" }}{{ .Label }}{{ end }}
{{ define "content" }}
<h1>{{ .Label }}</h1>
<p><code>{{ .URI }}</code>{{ with .Class }} <a href="{{ classURL $.Model . }}">{{ .Label $.Lang }}</a>{{ end }}</p>
<table>
<tr><th>Property</th><th>Values</th></tr>
{{ range .Properties }}<tr>
<td>{{ .Label }}</td>
<td>{{ range .Values }}<div>{{ .HTML }}</div>{{ end }}</td>
</tr>
{{ end }}</table>
{{ end }}
`

var templateFuncs = template.FuncMap{
	"classURL": func(model *semantic.Model, class *semantic.Class) string {
		return "/models/" + url.PathEscape(model.Name) + "/class?uri=" + url.QueryEscape(class.URI)
	},
	"objectURL": objectURL,
}

func objectURL(model *semantic.Model, uri string) string {
	return "/models/" + url.PathEscape(model.Name) + "/object?uri=" + url.QueryEscape(uri)
}

var layoutTemplate = template.Must(template.New("layout").Funcs(templateFuncs).Parse(layoutHTML))

// page creates a template for a page rendered inside the layout
func page(source string) *template.Template {
	return template.Must(template.Must(layoutTemplate.Clone()).Parse(source))
}

var (
	indexTemplate  = page(indexHTML)
	modelTemplate  = page(modelHTML)
	classTemplate  = page(classHTML)
	objectTemplate = page(objectHTML)
)

func (server *Server) render(w http.ResponseWriter, r *http.Request, tpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := tpl.Execute(w, data); err != nil {
		server.Logger.Error("failed to render page", "path", r.URL.Path, "err", err)
	}
}

type htmlIndexContext struct {
	Model  *semantic.Model
	Models []*semantic.Model
}

func (server *Server) htmlIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	server.render(w, r, indexTemplate, htmlIndexContext{Models: server.Platform.Models()})
}

type htmlModelContext struct {
	Model   *semantic.Model
	Classes []*semantic.Class
	Lang    string
}

func (server *Server) htmlModel(w http.ResponseWriter, r *http.Request) {
	model, ok := server.model(w, r)
	if !ok {
		return
	}
	server.render(w, r, modelTemplate, htmlModelContext{
		Model:   model,
		Classes: server.Platform.Ontology.Classes(),
		Lang:    language(r),
	})
}

type htmlInstance struct {
	URI   string
	Label string
}

type htmlClassContext struct {
	Model     *semantic.Model
	Class     *semantic.Class
	Instances []htmlInstance
	Lang      string
}

func (server *Server) htmlClass(w http.ResponseWriter, r *http.Request) {
	model, ok := server.model(w, r)
	if !ok {
		return
	}

	class, err := server.Platform.Ontology.Class(mux.Vars(r)["uri"])
	if err != nil {
		server.failObject(w, r, err)
		return
	}

	objects, err := model.Instances(r.Context(), class.URI, true)
	if err != nil {
		server.failObject(w, r, err)
		return
	}

	lang := language(r)
	instances := make([]htmlInstance, len(objects))
	for i, object := range objects {
		label, err := object.DisplayName(r.Context(), lang)
		if err != nil {
			server.failObject(w, r, err)
			return
		}
		instances[i] = htmlInstance{URI: object.URI(), Label: label}
	}

	server.render(w, r, classTemplate, htmlClassContext{
		Model:     model,
		Class:     class,
		Instances: instances,
		Lang:      lang,
	})
}

type htmlValue struct {
	HTML template.HTML
}

type htmlProperty struct {
	Label  string
	Values []htmlValue
}

type htmlObjectContext struct {
	Model      *semantic.Model
	URI        string
	Label      string
	Class      *semantic.Class
	Properties []htmlProperty
	Lang       string
}

func (server *Server) htmlObject(w http.ResponseWriter, r *http.Request) {
	model, ok := server.model(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	object, err := model.Object(ctx, mux.Vars(r)["uri"])
	if err != nil {
		server.failObject(w, r, err)
		return
	}

	lang := language(r)
	data := htmlObjectContext{Model: model, URI: object.URI(), Lang: lang}
	if data.Label, err = object.DisplayName(ctx, lang); err != nil {
		server.failObject(w, r, err)
		return
	}
	if class, err := object.Class(ctx); err == nil {
		data.Class = class
	}

	properties, err := object.Properties(ctx)
	if err != nil {
		server.failObject(w, r, err)
		return
	}
	for _, uri := range properties {
		values, err := object.GetAll(ctx, uri)
		if err != nil {
			server.failObject(w, r, err)
			return
		}

		property := htmlProperty{Label: vocab.Compact(uri)}
		if p, err := server.Platform.Ontology.Property(uri); err == nil {
			property.Label = p.Label(lang)
		}
		for _, value := range values {
			property.Values = append(property.Values, htmlValue{HTML: server.renderTerm(ctx, model, value)})
		}
		data.Properties = append(data.Properties, property)
	}

	server.render(w, r, objectTemplate, data)
}

// renderTerm renders a single value of an object
func (server *Server) renderTerm(ctx context.Context, model *semantic.Model, term rdf.Term) template.HTML {
	switch {
	case term.IsIRI():
		if exists, err := model.Exists(ctx, term.Value); err == nil && exists {
			return template.HTML(`<a href="` + template.HTMLEscapeString(objectURL(model, term.Value)) + `">` + template.HTMLEscapeString(vocab.Compact(term.Value)) + `</a>`)
		}
		return template.HTML(`<code>` + template.HTMLEscapeString(vocab.Compact(term.Value)) + `</code>`)
	case term.IsLiteral() && term.Datatype == vocab.HTML:
		html, err := htmlx.Render(term.Value, func(link string) string {
			if strings.HasPrefix(link, model.Namespace) {
				return objectURL(model, link)
			}
			return link
		})
		if err == nil {
			return template.HTML(html)
		}
		server.Logger.Debug("failed to render html literal", "err", err)
	}

	text := template.HTMLEscapeString(term.Value)
	if term.Lang != "" {
		text += ` <code>@` + template.HTMLEscapeString(term.Lang) + `</code>`
	}
	return template.HTML(text)
}
