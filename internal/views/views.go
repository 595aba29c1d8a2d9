// Package views holds the embedded HTML templates and the template engine used by the board.
package views

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/html/v2"
)

// Layout wraps every page.
const Layout = "layouts/main"

// View names rendered by the board handlers.
const (
	ListView    = "bbs/list"
	WriteView   = "bbs/write"
	ArticleView = "bbs/article"
	ErrorView   = "error"
)

//go:embed templates
var templateFS embed.FS

// New returns the template engine over the embedded templates.
func New() *html.Engine {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}

	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("add", func(a, b int) int { return a + b })
	engine.AddFunc("sub", func(a, b int) int { return a - b })
	// safe marks already-escaped markup as trusted.
	engine.AddFunc("safe", func(s string) template.HTML { return template.HTML(s) }) //nolint:gosec
	engine.AddFunc("datetime", func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	})
	return engine
}
