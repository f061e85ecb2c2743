package router

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar registers a handler's routes on an API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router groups handler registration for the versioned API surface
type Router struct {
	engine     *gin.Engine
	registrars []RouteRegistrar
}

// New creates a router on the given engine
func New(engine *gin.Engine) *Router {
	return &Router{engine: engine}
}

// Register queues handlers for registration
func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts all registered handlers under the given base path with
// the supplied middleware applied to the whole group.
func (r *Router) Setup(basePath string, middleware ...gin.HandlerFunc) *gin.RouterGroup {
	group := r.engine.Group(basePath)
	group.Use(middleware...)

	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(group)
	}
	return group
}
