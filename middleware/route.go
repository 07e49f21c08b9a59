package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "RTChat/middleware/security"
)

type RouteOpt struct {
	IsAuth bool
}

// POST registers the route, prefixed with the auth middleware when asked.
func POST(r gin.IRoutes, path string, auth *midsec.Options, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, midsec.Middleware(auth), handler)
	} else {
		r.POST(path, handler)
	}
}

// GET registers the route, prefixed with the auth middleware when asked.
func GET(r gin.IRoutes, path string, auth *midsec.Options, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, midsec.Middleware(auth), handler)
	} else {
		r.GET(path, handler)
	}
}

// DELETE registers the route, prefixed with the auth middleware when asked.
func DELETE(r gin.IRoutes, path string, auth *midsec.Options, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.DELETE(path, midsec.Middleware(auth), handler)
	} else {
		r.DELETE(path, handler)
	}
}
