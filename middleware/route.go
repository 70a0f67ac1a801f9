package middleware

import (
	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth bool
}

// Router wraps route registration so handlers declare auth per-route
// instead of wiring middleware chains by hand.
type Router struct {
	auth gin.HandlerFunc
}

func NewRouter(auth gin.HandlerFunc) *Router {
	return &Router{auth: auth}
}

func (rt *Router) POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, rt.auth, handler)
	} else {
		r.POST(path, handler)
	}
}

func (rt *Router) GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, rt.auth, handler)
	} else {
		r.GET(path, handler)
	}
}
