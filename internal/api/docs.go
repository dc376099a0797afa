package api

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/pkg/version"
)

type endpointDoc struct {
	Path        string
	Description string
}

var endpointDocs = []endpointDoc{
	{"/health", "Server health and build information (never requires auth)"},
	{"/api/v1/version", "Canonical version from the project's version store"},
	{"/api/v1/history?kind=&since=&until=&limit=&offset=", "Recorded bump, nightly and prune runs, newest first"},
	{"/api/v1/history/latest", "Most recent event of each kind"},
	{"/api/v1/history/{id}", "One recorded event"},
	{"/api/v1/channels/{stable|nightly}/latest", "Release a device on the channel would be offered"},
	{"/api/v1/metrics", "Prometheus metrics"},
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>relkit API (Read-Only)</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Helvetica, Arial, sans-serif; background: #0d1117; color: #c9d1d9; margin: 2rem; }
        h1 { color: #58a6ff; }
        code { color: #3fb950; }
        td { padding: 0.3rem 1rem 0.3rem 0; border-bottom: 1px solid #30363d; }
        .muted { color: #8b949e; }
    </style>
</head>
<body>
    <h1>relkit API</h1>
    <p class="muted">Version {{.Version}} &middot; all endpoints are GET</p>
    <table>
    {{range .Endpoints}}<tr><td><code>{{.Path}}</code></td><td>{{.Description}}</td></tr>
    {{end}}</table>
</body>
</html>
`))

// handleAPIDocs serves the API documentation page.
func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := docsTemplate.Execute(w, struct {
		Version   string
		Endpoints []endpointDoc
	}{version.Version, endpointDocs})
	if err != nil {
		s.logger.Error("Failed to render API docs", zap.Error(err))
	}
}

// handleAPIRedirect redirects to the API documentation.
func (s *Server) handleAPIRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/api/", http.StatusMovedPermanently)
}
