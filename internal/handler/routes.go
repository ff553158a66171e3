package handler

import (
	"github.com/gin-gonic/gin"
)

type RouteConfig struct {
	PostbackPath string
}

func RegisterRoutes(r *gin.Engine, h *TransactionHandler, cfg RouteConfig) {
	postbackPath := cfg.PostbackPath
	if postbackPath == "" {
		postbackPath = "/api/postbacks/korepay/"
	}

	r.Use(RequestID(), CORS(), RequestLogger())

	r.GET("/healthz", Health)
	r.GET("/api/config/", h.PublicConfig)

	api := r.Group("/api/transactions")
	{
		api.POST("/pix/", h.Create)
		api.OPTIONS("/pix/", h.Create)
		api.GET("/status/", h.Status)
	}

	r.Any(postbackPath, h.Postback)
}

// NewRouter builds the engine the relay serves.
func NewRouter(h *TransactionHandler, cfg RouteConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, h, cfg)
	return r
}
