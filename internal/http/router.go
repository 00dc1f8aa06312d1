package http

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// NewRouter builds the gin engine serving the handler's pages and the
// static assets.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(logRequests(h.logger), gin.Recovery())

	router.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.tmpl")))

	assets, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	router.StaticFS("/static", http.FS(assets))

	h.RegisterRoutes(router)
	return router
}
