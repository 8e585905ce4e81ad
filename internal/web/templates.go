package web

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"fmtval": func(v any) string {
			if v == nil {
				return ""
			}
			return fmt.Sprint(v)
		},
		"checked": func(v any) bool {
			b, ok := v.(bool)
			return ok && b
		},
	}
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("rendering template",
			slog.String("template", name), slog.String("error", err.Error()))
	}
}
