// Package server is the HTTP surface: document intake, ledger queries,
// counter administration and the dashboard aggregate, all under /v1.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Handlers groups the route handlers the router wires up.
type Handlers struct {
	Documents *DocumentsHandler
	Invoices  *InvoicesHandler
	Numbering *NumberingHandler
	System    *SystemHandler
}

// NewRouter builds the gin engine with middleware and all routes
// registered.
func NewRouter(handlers Handlers, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger), ErrorHandler())

	router.GET("/healthz", handlers.System.Healthz)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	documents := router.Group("/documents")
	{
		documents.POST("", handlers.Documents.Upload)
		documents.GET("", handlers.Documents.List)
		documents.DELETE("/:id", handlers.Documents.Purge)
	}

	invoices := router.Group("/invoices")
	{
		invoices.GET("", handlers.Invoices.List)
		invoices.GET("/:series/:number", handlers.Invoices.Get)
		invoices.GET("/:series/:number/xml", handlers.Invoices.GetXML)
		invoices.POST("/:series/:number/void", handlers.Invoices.Void)
	}

	// The XLSX export sits beside /invoices because gin cannot register
	// a static segment next to the :series wildcard.
	router.GET("/export", handlers.Invoices.Export)

	numbering := router.Group("/numbering")
	{
		numbering.GET("", handlers.Numbering.Get)
		numbering.PUT("", handlers.Numbering.Override)
	}

	router.GET("/stats", handlers.System.Stats)
}
