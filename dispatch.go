package flowkit

import (
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/flowkit/core/binder"
	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/lifecycle"
	"github.com/dmitrymomot/flowkit/core/logger"
	"github.com/dmitrymomot/flowkit/core/response"
	"github.com/dmitrymomot/flowkit/core/schema"
)

// Handle runs r through the app and returns the final response. It never
// panics and never returns nil; failures become error responses. The caller
// must Close the response. afterResponse hooks run before Handle returns.
func (a *App) Handle(r *http.Request) *handler.Response {
	ex := a.newExchange(r)
	resp := ex.run()
	ex.afterResponse(resp)
	return resp
}

// ServeHTTP implements http.Handler. afterResponse hooks run once the
// response has been written.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ex := a.newExchange(r)
	resp := ex.run()
	if err := response.Write(w, r, resp); err != nil {
		var p *PanicError
		if errors.As(err, &p) {
			a.logger.ErrorContext(r.Context(), "response stream panicked",
				logger.Component("flowkit"),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Error(err),
				logger.Stack(p.Stack()),
				logger.Elapsed(start),
			)
		} else {
			a.logger.WarnContext(r.Context(), "response write failed",
				logger.Component("flowkit"),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Error(err),
				logger.Elapsed(start),
			)
		}
	}
	ex.afterResponse(resp)
}

// exchange carries one request through the app.
type exchange struct {
	app   *App
	ctx   *handler.Context
	route *route
	comp  *composed
}

func (a *App) newExchange(r *http.Request) *exchange {
	a.mu.RLock()
	decorators := maps.Clone(a.decorators)
	a.mu.RUnlock()
	pre := handler.NewPreContext(r, a.state, decorators)
	return &exchange{app: a, ctx: handler.NewContext(pre)}
}

func (ex *exchange) run() (resp *handler.Response) {
	defer func() {
		if v := recover(); v != nil {
			resp = ex.finalize(ex.fail(newPanicError(v)))
		}
	}()

	resp, err := runChain(ex.ctx, ex.app.middlewares(), ex.dispatch)
	if err != nil {
		if halt, ok := handler.AsHalt(err); ok {
			resp = haltResponse(halt)
		} else {
			resp = ex.fail(err)
		}
	}
	return ex.finalize(resp)
}

// finalize merges headers set on the context into resp. Headers set on the
// response itself win.
func (ex *exchange) finalize(resp *handler.Response) *handler.Response {
	if resp == nil {
		resp = handler.NewResponse(http.StatusOK, nil)
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	for k, vs := range ex.ctx.Header() {
		if _, ok := resp.Header[k]; !ok {
			resp.Header[k] = vs
		}
	}
	return resp
}

// dispatch is the innermost step of the app middleware chain: request hooks,
// routing and the route pipeline wrapped in the middleware of mounted apps.
func (ex *exchange) dispatch() (*handler.Response, error) {
	c := ex.ctx
	for _, h := range ex.app.hooks.Hooks(lifecycle.EventRequest) {
		v, err := h.Fn.(handler.RequestHook)(c.PreContext)
		if err != nil {
			return ex.recoverable(err)
		}
		if v != nil {
			resp, err := ex.normalize(v)
			if err != nil {
				return ex.recoverable(err)
			}
			return resp, nil
		}
	}

	m, ok := ex.app.routes.Resolve(c.Method(), c.Request().URL.EscapedPath())
	if !ok {
		return ex.recoverable(handler.NotFound())
	}
	c.SetRoute(m.Pattern, m.Params)
	ex.route = m.Value
	ex.comp = m.Value.compose()

	return runChain(c, ex.comp.middleware, ex.pipeline)
}

// recoverable routes err through the error hooks. Halts pass through
// untouched so that they unwind the middleware chain.
func (ex *exchange) recoverable(err error) (*handler.Response, error) {
	if _, ok := handler.AsHalt(err); ok {
		return nil, err
	}
	return ex.fail(err), nil
}

func (ex *exchange) pipeline() (resp *handler.Response, err error) {
	defer func() {
		if v := recover(); v != nil {
			resp, err = ex.fail(newPanicError(v)), nil
		}
	}()

	resp, err = ex.stages()
	if err != nil {
		return ex.recoverable(err)
	}
	return resp, nil
}

// stages runs parse, transform, validation, beforeHandle, the handler,
// afterHandle and mapResponse, then normalizes the result.
func (ex *exchange) stages() (*handler.Response, error) {
	c := ex.ctx
	hooks := ex.comp.hooks

	if err := ex.parse(hooks[lifecycle.EventParse]); err != nil {
		return nil, err
	}

	for _, h := range hooks[lifecycle.EventTransform] {
		if err := h.Fn.(handler.TransformHook)(c); err != nil {
			return nil, err
		}
	}

	if err := ex.validate(); err != nil {
		return nil, err
	}

	var (
		result  any
		handled bool
	)
	for _, h := range hooks[lifecycle.EventBeforeHandle] {
		v, err := h.Fn.(handler.BeforeHandleHook)(c)
		if err != nil {
			return nil, err
		}
		if v != nil {
			result, handled = v, true
			break
		}
	}
	if !handled {
		v, err := ex.route.handler(c)
		if err != nil {
			return nil, err
		}
		result = v
	}
	c.SetResponse(result)

	for _, h := range hooks[lifecycle.EventAfterHandle] {
		v, err := h.Fn.(handler.AfterHandleHook)(c)
		if err != nil {
			return nil, err
		}
		if v != nil {
			c.SetResponse(v)
			break
		}
	}

	for _, h := range hooks[lifecycle.EventMapResponse] {
		v, err := h.Fn.(handler.MapResponseHook)(c)
		if err != nil {
			return nil, err
		}
		if v != nil {
			c.SetResponse(v)
			break
		}
	}

	if ex.app.validateResponse {
		if err := ex.validateResult(c.Response()); err != nil {
			return nil, err
		}
	}
	return ex.normalize(c.Response())
}

// parse selects the body parser. The first matching parse hook returning a
// value wins; otherwise the negotiated built-in parser runs.
func (ex *exchange) parse(hooks []lifecycle.Hook) error {
	c := ex.ctx
	r := c.Request()
	kind, mediaType := binder.Negotiate(ex.route.spec.parser, r.Header.Get("Content-Type"))

	for _, h := range hooks {
		if !h.Matches(mediaType) {
			continue
		}
		v, err := h.Fn.(handler.ParseHook)(c, mediaType)
		if err != nil {
			return handler.ParseError(err)
		}
		if v != nil {
			c.SetBody(v, nil)
			return nil
		}
	}

	p, err := binder.Parse(r, kind, ex.app.bodyLimit)
	if err != nil {
		return err
	}
	c.SetBody(p.Value, p.Raw)
	if len(p.Files) > 0 {
		c.SetValue(filesKey{}, p.Files)
	}
	return nil
}

type filesKey struct{}

// Files returns the files uploaded with a multipart body.
func Files(c *handler.Context) map[string][]*multipart.FileHeader {
	files, _ := c.Value(filesKey{}).(map[string][]*multipart.FileHeader)
	return files
}

// validate checks params, query and body against the route schemas and
// reports every failing field at once.
func (ex *exchange) validate() error {
	c := ex.ctx
	spec := ex.route.spec
	resolve := ex.app.resolveModel
	var fields []handler.FieldError

	if spec.params != nil {
		doc, err := spec.params.CoerceMap(c.Params(), resolve)
		if err != nil {
			return err
		}
		fields = append(fields, fieldErrors(spec.params.ValidateJSON(doc, "params", resolve))...)
	}

	if spec.query != nil {
		doc, err := spec.query.Coerce(c.Query(), resolve)
		if err != nil {
			return err
		}
		fields = append(fields, fieldErrors(spec.query.ValidateJSON(doc, "query", resolve))...)
	}

	if spec.body != nil {
		doc, err := bodyDocument(spec.body, c, resolve)
		if err != nil {
			return err
		}
		fields = append(fields, fieldErrors(spec.body.ValidateJSON(doc, "body", resolve))...)
	}

	if len(fields) > 0 {
		return handler.ValidationError(fields...)
	}
	return nil
}

// bodyDocument renders the parsed body as JSON for validation. Form bodies
// are coerced to the declared property types, and the coerced document
// becomes the raw body so that Context.Bind works for forms too.
func bodyDocument(s *schema.Schema, c *handler.Context, resolve schema.Resolver) ([]byte, error) {
	switch body := c.Body().(type) {
	case url.Values:
		doc, err := s.Coerce(body, resolve)
		if err != nil {
			return nil, err
		}
		c.SetBody(body, doc)
		return doc, nil
	case nil:
		if raw := c.RawBody(); len(raw) > 0 {
			return raw, nil
		}
		return nil, nil
	case string:
		return json.Marshal(body)
	case []byte:
		return json.Marshal(string(body))
	}
	if raw := c.RawBody(); len(raw) > 0 && json.Valid(raw) {
		return raw, nil
	}
	return json.Marshal(c.Body())
}

func fieldErrors(vs []schema.Violation) []handler.FieldError {
	if len(vs) == 0 {
		return nil
	}
	out := make([]handler.FieldError, len(vs))
	for i, v := range vs {
		out[i] = handler.FieldError{Path: v.Path, Message: v.Message}
	}
	return out
}

// validateResult checks a plain handler result against the response schema
// declared for its status. Responses and streams are not inspected.
func (ex *exchange) validateResult(v any) error {
	if len(ex.route.spec.responses) == 0 || v == nil {
		return nil
	}
	if _, ok := v.(*handler.Response); ok {
		return nil
	}
	status := ex.ctx.StatusCode()
	if status == 0 {
		status = http.StatusOK
	}
	s, ok := ex.route.spec.responses[status]
	if !ok {
		return nil
	}
	doc, err := json.Marshal(v)
	if err != nil {
		// Not JSON-shaped, e.g. a stream; normalization decides
		return nil
	}
	if vs := s.ValidateJSON(doc, "response", ex.app.resolveModel); len(vs) > 0 {
		e := handler.NewError(handler.KindInternal, http.StatusInternalServerError, ErrInvalidResponse.Error())
		e.Fields = fieldErrors(vs)
		e.Err = ErrInvalidResponse
		return e
	}
	return nil
}

// normalize converts v into a response, applying the context status
// override to anything that is not already a response.
func (ex *exchange) normalize(v any) (*handler.Response, error) {
	resp, err := response.Normalize(ex.ctx.Request(), v, response.Options{StreamFormat: ex.app.streamFormat})
	if err != nil {
		return nil, err
	}
	if _, ok := v.(*handler.Response); !ok {
		if code := ex.ctx.StatusCode(); code != 0 {
			resp.Status = code
		}
	}
	return resp, nil
}

// fail routes err through the error hooks: route hooks, the owner's hooks,
// the parent's scoped hooks, then ancestor globals. Unmatched requests only
// see the error hooks of the handling app.
func (ex *exchange) fail(err error) *handler.Response {
	c := ex.ctx
	e := ex.app.classify(err)
	ex.logFailure(e)

	// The status override belongs to the successful result
	c.Status(0)

	hooks := ex.app.hooks.Hooks(lifecycle.EventError)
	if ex.comp != nil {
		hooks = ex.comp.errors
	}
	for _, h := range hooks {
		if resp, ok := ex.tryErrorHook(h, e); ok {
			return resp
		}
	}
	return defaultErrorResponse(e)
}

func (ex *exchange) tryErrorHook(h lifecycle.Hook, e *handler.Error) (resp *handler.Response, ok bool) {
	c := ex.ctx
	defer func() {
		if v := recover(); v != nil {
			ex.app.logger.ErrorContext(c, "error hook panicked",
				logger.Component("flowkit"),
				logger.Error(newPanicError(v)),
			)
			resp, ok = nil, false
		}
	}()

	v, err := h.Fn.(handler.ErrorHook)(c, e)
	if err != nil {
		if halt, isHalt := handler.AsHalt(err); isHalt {
			return haltResponse(halt), true
		}
		ex.app.logger.ErrorContext(c, "error hook failed", logger.Component("flowkit"), logger.Error(err))
		return nil, false
	}
	if v == nil {
		return nil, false
	}

	resp, err = response.Normalize(c.Request(), v, response.Options{StreamFormat: ex.app.streamFormat})
	if err != nil {
		ex.app.logger.ErrorContext(c, "error hook result not encodable", logger.Component("flowkit"), logger.Error(err))
		return nil, false
	}
	if _, isResp := v.(*handler.Response); !isResp {
		resp.Status = e.StatusCode()
		if code := c.StatusCode(); code != 0 {
			resp.Status = code
		}
	}
	return resp, true
}

func (ex *exchange) logFailure(e *handler.Error) {
	c := ex.ctx
	level := slog.LevelError
	switch e.Kind {
	case handler.KindNotFound, handler.KindValidation, handler.KindParse:
		level = slog.LevelDebug
	}
	attrs := []slog.Attr{
		logger.Component("flowkit"),
		logger.Kind(string(e.Kind)),
		logger.Method(c.Method()),
		logger.Path(c.Path()),
		logger.Route(c.Route()),
		logger.StatusCode(e.StatusCode()),
		logger.Error(e),
	}
	var p *PanicError
	if errors.As(e, &p) {
		attrs = append(attrs, logger.Stack(p.Stack()))
	}
	ex.app.logger.LogAttrs(c, level, "request failed", attrs...)
}

// afterResponse runs the afterResponse hooks; their errors and panics are
// only logged.
func (ex *exchange) afterResponse(resp *handler.Response) {
	hooks := ex.app.hooks.Hooks(lifecycle.EventAfterResponse)
	if ex.comp != nil {
		hooks = ex.comp.hooks[lifecycle.EventAfterResponse]
	}
	c := ex.ctx
	c.SetFinalResponse(resp)
	if len(hooks) == 0 {
		return
	}
	if c.Response() == nil {
		c.SetResponse(resp)
	}
	for _, h := range hooks {
		func() {
			defer func() {
				if v := recover(); v != nil {
					ex.app.logger.ErrorContext(c, "afterResponse hook panicked",
						logger.Component("flowkit"),
						logger.Error(newPanicError(v)),
					)
				}
			}()
			if err := h.Fn.(handler.AfterResponseHook)(c); err != nil {
				ex.app.logger.WarnContext(c, "afterResponse hook failed",
					logger.Component("flowkit"),
					logger.Error(err),
				)
			}
		}()
	}
}
