package middleware

import (
	"maps"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// SecurityHeadersConfig configures the security headers middleware. Empty
// fields are not sent.
type SecurityHeadersConfig struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(c *handler.Context) bool

	ContentTypeOptions        string
	FrameOptions              string
	XSSProtection             string
	StrictTransportSecurity   string
	ContentSecurityPolicy     string
	ReferrerPolicy            string
	PermissionsPolicy         string
	CrossOriginOpenerPolicy   string
	CrossOriginEmbedderPolicy string
	CrossOriginResourcePolicy string

	// CustomHeaders are sent as is and override the fields above.
	CustomHeaders map[string]string

	// IsDevelopment drops Strict-Transport-Security so local plain HTTP
	// keeps working.
	IsDevelopment bool
}

// Predefined configurations.
var (
	// StrictSecurity blocks framing, external resources and inline content.
	StrictSecurity = SecurityHeadersConfig{
		ContentTypeOptions:        "nosniff",
		FrameOptions:              "DENY",
		XSSProtection:             "1; mode=block",
		StrictTransportSecurity:   "max-age=63072000; includeSubDomains; preload",
		ContentSecurityPolicy:     "default-src 'none'; script-src 'self'; style-src 'self'; img-src 'self'; font-src 'self'; connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'",
		ReferrerPolicy:            "no-referrer",
		PermissionsPolicy:         "accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginResourcePolicy: "same-origin",
	}

	// BalancedSecurity suits most applications and is the default.
	BalancedSecurity = SecurityHeadersConfig{
		ContentTypeOptions:        "nosniff",
		FrameOptions:              "SAMEORIGIN",
		XSSProtection:             "1; mode=block",
		StrictTransportSecurity:   "max-age=31536000; includeSubDomains",
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' data:",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		PermissionsPolicy:         "geolocation=(), microphone=(), camera=()",
		CrossOriginOpenerPolicy:   "same-origin-allow-popups",
		CrossOriginResourcePolicy: "cross-origin",
	}

	// RelaxedSecurity only sets headers that never break pages.
	RelaxedSecurity = SecurityHeadersConfig{
		ContentTypeOptions: "nosniff",
		XSSProtection:      "1; mode=block",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}

	// DevelopmentSecurity is for local development only.
	DevelopmentSecurity = SecurityHeadersConfig{
		ContentTypeOptions: "nosniff",
		XSSProtection:      "1; mode=block",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      true,
	}
)

// SecurityHeaders sends the BalancedSecurity headers.
func SecurityHeaders() handler.Middleware {
	return SecurityHeadersWithConfig(BalancedSecurity)
}

// SecurityHeadersStrict sends the StrictSecurity headers.
func SecurityHeadersStrict() handler.Middleware {
	return SecurityHeadersWithConfig(StrictSecurity)
}

// SecurityHeadersRelaxed sends the RelaxedSecurity headers.
func SecurityHeadersRelaxed() handler.Middleware {
	return SecurityHeadersWithConfig(RelaxedSecurity)
}

// SecurityHeadersWithConfig sends the headers configured in cfg.
//
// Headers are staged on the context before the rest of the chain runs, so
// error responses and unmatched routes carry them too. A response produced
// further down the chain gets them as well, unless it already set the same
// header.
//
//	cfg := middleware.BalancedSecurity
//	cfg.Skip = func(c *handler.Context) bool {
//		return strings.HasPrefix(c.Path(), "/embed/")
//	}
//	app.Use(middleware.SecurityHeadersWithConfig(cfg))
func SecurityHeadersWithConfig(cfg SecurityHeadersConfig) handler.Middleware {
	if cfg.IsDevelopment {
		cfg.StrictTransportSecurity = ""
	}

	headers := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			headers[key] = value
		}
	}
	set("X-Content-Type-Options", cfg.ContentTypeOptions)
	set("X-Frame-Options", cfg.FrameOptions)
	set("X-XSS-Protection", cfg.XSSProtection)
	set("Strict-Transport-Security", cfg.StrictTransportSecurity)
	set("Content-Security-Policy", cfg.ContentSecurityPolicy)
	set("Referrer-Policy", cfg.ReferrerPolicy)
	set("Permissions-Policy", cfg.PermissionsPolicy)
	set("Cross-Origin-Opener-Policy", cfg.CrossOriginOpenerPolicy)
	set("Cross-Origin-Embedder-Policy", cfg.CrossOriginEmbedderPolicy)
	set("Cross-Origin-Resource-Policy", cfg.CrossOriginResourcePolicy)
	maps.Copy(headers, cfg.CustomHeaders)

	return func(c *handler.Context, next handler.Next) (*handler.Response, error) {
		if cfg.Skip != nil && cfg.Skip(c) {
			return next()
		}

		h := c.Header()
		for key, value := range headers {
			h.Set(key, value)
		}

		resp, err := next()
		if resp != nil {
			for key, value := range headers {
				if resp.Header.Get(key) == "" {
					resp.SetHeader(key, value)
				}
			}
		}
		return resp, err
	}
}
