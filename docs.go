package uxum

import (
	"html/template"
	"net/http"
)

// docsHandler renders an interactive API documentation page (Stoplight
// Elements) pointing at the served OpenAPI spec.
func docsHandler(title, specURL string) http.Handler {
	tmpl := template.Must(template.New("docs").Parse(docsHTML))
	data := struct {
		Title   string
		SpecURL string
	}{Title: title, SpecURL: specURL}

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		//nolint:errcheck,gosec // best-effort template render
		tmpl.Execute(w, data)
	})
}

const docsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
  <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
</head>
<body>
  <elements-api
    apiDescriptionUrl="{{.SpecURL}}"
    router="hash"
    layout="sidebar"
  />
</body>
</html>`
