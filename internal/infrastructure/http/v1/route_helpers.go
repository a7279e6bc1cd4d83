// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"tillcore/internal/domain/auth"
	"tillcore/internal/infrastructure/http/v1/handlers"
	"tillcore/internal/infrastructure/http/v1/middleware"
)

// RegisterRoutes mounts the register session endpoints.
func RegisterRoutes(group *gin.RouterGroup, h *handlers.RegisterHandler) {
	group.POST("/open", h.Open)
	group.POST("/close", h.Close)
	group.GET("/current", h.Current)
}

// SaleRoutes mounts the sale endpoints.
func SaleRoutes(group *gin.RouterGroup, h *handlers.SaleHandler) {
	group.POST("", h.Finalize)
	group.GET("/*billNumber", h.Get)
}

// HoldRoutes mounts the held sale endpoints. Sweeping is a supervisor action.
func HoldRoutes(group *gin.RouterGroup, h *handlers.HoldHandler) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.POST("/sweep", middleware.RequireRole(auth.RoleSupervisor), h.Sweep)
	group.GET("/:holdId", h.Get)
	group.POST("/:holdId/recall", h.Recall)
	group.POST("/:holdId/finalize", h.Finalize)
	group.DELETE("/:holdId", h.Delete)
}
