package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ChitChat/service/chat"
	"ChitChat/tools/errs"
)

// Context key for the resolved identity.
const CtxUserKey = "currentUser"

type Options struct {
	HeaderToken               string // default "Authorization"
	EnableAuthorizationBearer bool   // default true
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "Authorization",
		EnableAuthorizationBearer: true,
	}
}

// Middleware extracts the bearer token, resolves it through the auth gate
// and stores the user into the request context. Aborts with 401 otherwise.
func Middleware(gate *chat.AuthGate, opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		if opts.EnableAuthorizationBearer && strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		user, err := gate.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.Parse(err))
			return
		}

		c.Set(CtxUserKey, user)
		c.Next()
	}
}

// CurrentUser reads the identity set by Middleware; nil when unauthenticated.
func CurrentUser(c *gin.Context) *chat.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*chat.User)
	return u
}
