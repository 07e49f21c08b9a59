package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"RTChat/tools/errs"
	"RTChat/tools/security"
)

// Context keys set by the middleware; downstream handlers read identity
// through these.
const (
	CtxUserIDKey    = "rtUserId"
	CtxUserEmailKey = "rtUserEmail"
)

type Options struct {
	JWT security.Options

	// Allow ?userId=&userEmail= instead of a token. Mirrors the websocket
	// handshake: convenient for development, off for real deployments.
	AllowQueryIdentity bool
}

func DefaultOptions(jwtOpts security.Options) *Options {
	return &Options{JWT: jwtOpts, AllowQueryIdentity: true}
}

// Middleware authenticates the request and stores the caller identity in
// the gin context. Unauthenticated requests are rejected with 401 and an
// errs payload.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.AllowQueryIdentity {
			userID := strings.TrimSpace(c.Query("userId"))
			userEmail := strings.TrimSpace(c.Query("userEmail"))
			if userID != "" && userEmail != "" {
				c.Set(CtxUserIDKey, userID)
				c.Set(CtxUserEmailKey, userEmail)
				c.Next()
				return
			}
		}

		token := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		claims, err := security.Verify(opts.JWT, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxUserEmailKey, claims.UserEmail)
		c.Next()
	}
}

// Identity reads the authenticated user out of the gin context.
func Identity(c *gin.Context) (userID, userEmail string) {
	return c.GetString(CtxUserIDKey), c.GetString(CtxUserEmailKey)
}
