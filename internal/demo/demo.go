// Package demo assembles the sample application served and inspected by the
// flowkit command.
package demo

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/flowkit"
	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/health"
	"github.com/dmitrymomot/flowkit/core/response"
	"github.com/dmitrymomot/flowkit/core/schema"
	"github.com/dmitrymomot/flowkit/middleware"
	"github.com/dmitrymomot/flowkit/pkg/broadcast"
	"github.com/dmitrymomot/flowkit/pkg/ratelimiter"
)

// KindQuotaExceeded is reported by admin routes once the export quota is used up.
const KindQuotaExceeded flowkit.ErrorKind = "QUOTA_EXCEEDED"

var ErrQuotaExceeded = errors.New("export quota exceeded")

// User is the body accepted by POST /users.
type User struct {
	Name  string `json:"name" required:"true" minLength:"2" doc:"Display name"`
	Email string `json:"email" required:"true" format:"email"`
	Age   int    `json:"age,omitempty" minimum:"0" maximum:"150"`
}

// Options wires the external dependencies of the demo app.
type Options struct {
	// Config is applied with flowkit.NewFromConfig.
	Config flowkit.Config
	Logger *slog.Logger
	// Limiter defaults to an in-memory store allowing 100 requests per minute.
	Limiter ratelimiter.Store
	// Registry receives the HTTP metrics (default: a fresh registry).
	Registry *prometheus.Registry
	// Checks are the readiness checks.
	Checks []func(context.Context) error
	// AdminToken guards the admin app (default: "secret").
	AdminToken string
	// Development relaxes the security headers for local plain HTTP.
	Development bool
}

// New builds the demo application.
func New(opts Options) (*flowkit.App, error) {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.AdminToken == "" {
		opts.AdminToken = "secret"
	}
	if opts.Config.StreamFormat == "" {
		opts.Config.StreamFormat = string(response.FormatSSE)
	}
	if opts.Config.LogLevel == "" {
		opts.Config.LogLevel = "info"
	}
	if opts.Config.LogFormat == "" {
		opts.Config.LogFormat = "text"
	}

	var appOpts []flowkit.Option
	if opts.Logger != nil {
		appOpts = append(appOpts, flowkit.WithLogger(opts.Logger))
	}
	app, err := flowkit.NewFromConfig(opts.Config, appOpts...)
	if err != nil {
		return nil, fmt.Errorf("demo: %w", err)
	}

	if opts.Limiter == nil {
		store, err := ratelimiter.NewMemoryStore(
			ratelimiter.Config{Limit: 100, Window: time.Minute},
			ratelimiter.WithMemoryStoreLogger(app.Logger()),
		)
		if err != nil {
			return nil, fmt.Errorf("demo: %w", err)
		}
		superviseCleanup(app, store)
		opts.Limiter = store
	}

	skipInfra := func(c *flowkit.Context) bool {
		return strings.HasPrefix(c.Path(), "/health/") || c.Path() == "/metrics"
	}
	app.Use(
		middleware.RequestID(),
		middleware.ClientIP(),
		middleware.LoggingWithConfig(middleware.LoggingConfig{Logger: app.Logger(), Skip: skipInfra}),
		middleware.SecurityHeadersWithConfig(security(opts.Development)),
		middleware.CORS(),
		middleware.RateLimit(middleware.RateLimitConfig{Store: opts.Limiter, SetHeaders: true, Skip: skipInfra}),
		middleware.Metrics(middleware.MetricsConfig{Registry: opts.Registry, Skip: skipInfra}),
		middleware.Tracing(middleware.TracingConfig{Skip: skipInfra}),
	)

	app.Get("/health/live", health.Liveness)
	app.Get("/health/ready", health.Readiness(app.Logger(), opts.Checks...))
	app.Get("/metrics", middleware.MetricsHandler(opts.Registry))

	app.Model("User", schema.FromType[User]())
	users := newUserStore()
	app.Get("/", func(*flowkit.Context) (any, error) {
		return "flowkit demo", nil
	}, flowkit.Summary("Greeting"))
	app.Route("/users", func(g *flowkit.App) {
		g.Get("/me", func(*flowkit.Context) (any, error) {
			return User{Name: "Current", Email: "me@example.com"}, nil
		}, flowkit.Tags("users"))
		g.Get("/:id", users.get,
			flowkit.Params(schema.Object(map[string]*schema.Schema{"id": schema.Integer().Min(1)}, "id")),
			flowkit.Returns(http.StatusOK, schema.Ref("User")),
			flowkit.Tags("users"),
		)
		g.Get("/:id/card", users.card,
			flowkit.Params(schema.Object(map[string]*schema.Schema{"id": schema.Integer().Min(1)}, "id")),
			flowkit.Summary("Render a user card"),
			flowkit.Tags("users"),
		)
		g.Post("/", users.create,
			flowkit.Body(schema.Ref("User")),
			flowkit.Returns(http.StatusCreated, schema.Ref("User")),
			flowkit.Summary("Create a user"),
			flowkit.Tags("users"),
		)
	})
	app.Get("/docs/:lang?", func(c *flowkit.Context) (any, error) {
		lang := c.Param("lang")
		if lang == "" {
			lang = "en"
		}
		return map[string]string{"lang": lang}, nil
	})
	app.Get("/files/*", func(c *flowkit.Context) (any, error) {
		return map[string]string{"path": c.Param("*")}, nil
	})
	app.Get("/stream/count", count,
		flowkit.Query(schema.Object(map[string]*schema.Schema{"n": schema.Integer().Min(1).Max(100)})),
		flowkit.Summary("Stream a sequence of numbers"),
	)
	app.Get("/moved", func(*flowkit.Context) (any, error) {
		return nil, handler.Redirect("/", http.StatusMovedPermanently)
	})

	hub := broadcast.NewMemoryBroadcaster[string](16)
	app.OnStop(func(context.Context) error { return hub.Close() })
	app.Get("/events", announcements(hub),
		flowkit.Query(schema.Object(map[string]*schema.Schema{"limit": schema.Integer().Min(1)})),
		flowkit.Summary("Stream admin announcements"),
	)

	app.Mount("/admin", newAdmin(opts.AdminToken, hub))
	return app, nil
}

// announcements streams broadcast messages until the client leaves or the
// optional limit is reached.
func announcements(hub *broadcast.MemoryBroadcaster[string]) flowkit.HandlerFunc {
	return func(c *flowkit.Context) (any, error) {
		limit, _ := strconv.Atoi(c.Query().Get("limit"))
		sub := hub.Subscribe(c)
		msgs := sub.Receive(c)

		return iter.Seq2[any, error](func(yield func(any, error) bool) {
			defer sub.Close()
			for n := 0; limit == 0 || n < limit; n++ {
				select {
				case <-c.Done():
					return
				case msg, ok := <-msgs:
					if !ok || !yield(msg.Data, nil) {
						return
					}
				}
			}
		}), nil
	}
}

// newAdmin is the token-guarded admin app. Its guard is scoped, so it also
// covers apps mounted into it.
func newAdmin(token string, hub *broadcast.MemoryBroadcaster[string]) *flowkit.App {
	admin := flowkit.New(flowkit.WithName("admin"))
	admin.RegisterError(KindQuotaExceeded, flowkit.MatchIs(ErrQuotaExceeded), http.StatusPaymentRequired)

	admin.OnBeforeHandle(func(c *flowkit.Context) (any, error) {
		if c.Request().Header.Get("X-Admin-Token") != token {
			return nil, handler.NewError(middleware.KindForbidden, http.StatusForbidden, "admin token required")
		}
		return nil, nil
	}, flowkit.Scoped())
	admin.OnErrorKind(KindQuotaExceeded, func(_ *flowkit.Context, e *flowkit.Error) (any, error) {
		return map[string]string{"error": e.Message, "upgrade": "/admin/billing"}, nil
	})

	started := time.Now()
	admin.Get("/stats", func(c *flowkit.Context) (any, error) {
		return map[string]any{
			"uptime":      time.Since(started).Round(time.Second).String(),
			"subscribers": hub.Subscribers(),
		}, nil
	})
	admin.Post("/export", func(*flowkit.Context) (any, error) {
		return nil, ErrQuotaExceeded
	})
	admin.Post("/announce", func(c *flowkit.Context) (any, error) {
		var body struct {
			Message string `json:"message"`
		}
		if err := c.Bind(&body); err != nil {
			return nil, err
		}
		if err := hub.Broadcast(c, broadcast.Message[string]{Data: body.Message}); err != nil {
			return nil, err
		}
		c.Status(http.StatusAccepted)
		return map[string]int{"subscribers": hub.Subscribers()}, nil
	}, flowkit.Body(schema.Object(map[string]*schema.Schema{"message": schema.String().MinLen(1)}, "message")))
	return admin
}

// security is the balanced header preset. Development drops HSTS so plain
// HTTP keeps working.
func security(development bool) middleware.SecurityHeadersConfig {
	cfg := middleware.BalancedSecurity
	cfg.IsDevelopment = development
	cfg.Skip = func(c *flowkit.Context) bool { return c.Path() == "/metrics" }
	return cfg
}

// superviseCleanup runs the idle bucket cleanup of store between app start
// and stop.
func superviseCleanup(app *flowkit.App, store *ratelimiter.MemoryStore) {
	var (
		cancel context.CancelFunc
		done   chan error
	)
	app.OnStart(func(ctx context.Context) error {
		var runCtx context.Context
		runCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
		done = make(chan error, 1)
		go func() { done <- store.Run(runCtx)() }()
		return nil
	})
	app.OnStop(func(ctx context.Context) error {
		if cancel == nil {
			return nil
		}
		cancel()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func count(c *flowkit.Context) (any, error) {
	n := 5
	if v := c.Query().Get("n"); v != "" {
		n, _ = strconv.Atoi(v)
	}
	seq := iter.Seq[int](func(yield func(int) bool) {
		for i := 1; i <= n; i++ {
			if !yield(i) {
				return
			}
		}
	})
	return response.Values(seq), nil
}

type userStore struct {
	mu    sync.RWMutex
	next  int
	users map[int]User
}

func newUserStore() *userStore {
	return &userStore{
		next:  2,
		users: map[int]User{1: {Name: "Ann", Email: "ann@example.com", Age: 30}},
	}
}

func (s *userStore) get(c *flowkit.Context) (any, error) {
	id, _ := strconv.Atoi(c.Param("id"))
	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return nil, handler.NotFound()
	}
	return u, nil
}

var cardTemplate = template.Must(template.New("card").Parse(
	`<article class="user" id="user-{{.ID}}"><h2>{{.Name}}</h2><a href="mailto:{{.Email}}">{{.Email}}</a></article>`,
))

// card renders a user as an HTML fragment. htmx requests also get an event
// so the page can highlight the loaded card.
func (s *userStore) card(c *flowkit.Context) (any, error) {
	id, _ := strconv.Atoi(c.Param("id"))
	s.mu.RLock()
	u, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return nil, handler.NotFound()
	}

	resp, err := response.RenderTemplate(cardTemplate, "", struct {
		ID int
		User
	}{id, u}, http.StatusOK)
	if err != nil {
		return nil, err
	}
	if response.IsHTMXRequest(c.Request()) {
		resp = response.WithHTMX(resp, response.TriggerEvent("user:loaded", map[string]int{"id": id}))
	}
	return resp, nil
}

func (s *userStore) create(c *flowkit.Context) (any, error) {
	var u User
	if err := c.Bind(&u); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.users[s.next] = u
	s.next++
	s.mu.Unlock()

	c.Status(http.StatusCreated)
	return u, nil
}
