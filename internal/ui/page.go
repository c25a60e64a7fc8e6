package ui

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

func Page(w io.Writer, v PageView) error {
	return pageTemplate.ExecuteTemplate(w, "index.html", v)
}
