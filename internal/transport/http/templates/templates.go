// Package templates holds the embedded pages and HTMX fragments.
package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html
var files embed.FS

func Load() *template.Template {
	return template.Must(template.ParseFS(files, "*.html"))
}
