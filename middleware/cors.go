package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(c *handler.Context) bool

	// AllowOrigins lists allowed origins. Empty or "*" allows every origin.
	AllowOrigins []string

	// AllowOriginFunc decides per origin and takes precedence over
	// AllowOrigins. It returns the value for Access-Control-Allow-Origin.
	AllowOriginFunc func(origin string) (string, bool)

	// AllowMethods defaults to GET, HEAD, PUT, PATCH, POST and DELETE.
	AllowMethods []string

	// AllowHeaders lists headers accepted in preflight requests. When empty
	// the headers requested by the client are echoed back.
	AllowHeaders []string

	ExposeHeaders []string

	// AllowCredentials is never sent together with a wildcard origin.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// CORS allows every origin with the default methods.
func CORS() handler.Middleware {
	return CORSWithConfig(CORSConfig{})
}

// CORSWithConfig is CORS with custom configuration. Preflight requests are
// answered with 204 without reaching the route; disallowed preflights get 403.
func CORSWithConfig(cfg CORSConfig) handler.Middleware {
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPut,
			http.MethodPatch,
			http.MethodPost,
			http.MethodDelete,
		}
	}

	allowMethods := strings.Join(cfg.AllowMethods, ",")
	allowHeaders := strings.Join(cfg.AllowHeaders, ",")
	exposeHeaders := strings.Join(cfg.ExposeHeaders, ",")

	origins := make(map[string]bool, len(cfg.AllowOrigins))
	for _, origin := range cfg.AllowOrigins {
		origins[origin] = true
	}
	wildcard := len(cfg.AllowOrigins) == 0 || origins["*"]

	resolve := func(origin string) (string, bool) {
		switch {
		case cfg.AllowOriginFunc != nil:
			return cfg.AllowOriginFunc(origin)
		case wildcard:
			return "*", true
		case origins[origin]:
			return origin, true
		}
		return "", false
	}

	return func(c *handler.Context, next handler.Next) (*handler.Response, error) {
		if cfg.Skip != nil && cfg.Skip(c) {
			return next()
		}

		req := c.Request()
		allowedOrigin, allowed := resolve(req.Header.Get("Origin"))
		credentials := cfg.AllowCredentials && allowedOrigin != "*"

		requestMethod := req.Header.Get("Access-Control-Request-Method")
		if req.Method == http.MethodOptions && requestMethod != "" {
			if !allowed || !slices.Contains(cfg.AllowMethods, requestMethod) {
				return handler.NewResponse(http.StatusForbidden, nil), nil
			}

			resp := handler.NewResponse(http.StatusNoContent, nil)
			h := resp.Header
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			if requested := req.Header.Get("Access-Control-Request-Headers"); requested != "" {
				if allowHeaders != "" {
					h.Set("Access-Control-Allow-Headers", allowHeaders)
				} else {
					h.Set("Access-Control-Allow-Headers", requested)
				}
			}
			if credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			if allowedOrigin != "*" {
				h.Add("Vary", "Origin")
			}
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			return resp, nil
		}

		if allowed {
			h := c.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			if credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if exposeHeaders != "" {
				h.Set("Access-Control-Expose-Headers", exposeHeaders)
			}
			if allowedOrigin != "*" {
				h.Add("Vary", "Origin")
			}
		}
		return next()
	}
}

// AllowOriginWildcard allows any non-empty origin and reflects it, which
// permits credentials unlike "*".
func AllowOriginWildcard() func(origin string) (string, bool) {
	return func(origin string) (string, bool) {
		return origin, origin != ""
	}
}

// AllowOriginSubdomain allows domain and all of its subdomains on any port.
func AllowOriginSubdomain(domain string) func(origin string) (string, bool) {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(domain, "*."), "."))
	suffix := "." + domain

	return func(origin string) (string, bool) {
		if origin == "" {
			return "", false
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return "", false
		}
		host := strings.ToLower(u.Hostname())
		if host == domain || strings.HasSuffix(host, suffix) {
			return origin, true
		}
		return "", false
	}
}
