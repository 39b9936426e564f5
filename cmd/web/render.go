package main

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates
var templatesFS embed.FS

var pages = map[string]*template.Template{}

func init() {
	funcs := template.FuncMap{"contains": contains}
	for _, name := range []string{"list.html", "irrigation_form.html", "irrigation_delete.html", "error.html"} {
		pages[name] = template.Must(template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+name))
	}
}

// renderTemplate executes page name inside the shared layout. The page is rendered to a
// buffer first so a template error never produces a half-written 200.
func renderTemplate(w http.ResponseWriter, status int, name string, data interface{}) {
	t, ok := pages[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("template execute", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
