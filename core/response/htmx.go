package response

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// HTMX response headers.
const (
	HeaderHXLocation           = "HX-Location"
	HeaderHXPushURL            = "HX-Push-Url"
	HeaderHXRedirect           = "HX-Redirect"
	HeaderHXRefresh            = "HX-Refresh"
	HeaderHXReplaceURL         = "HX-Replace-Url"
	HeaderHXReswap             = "HX-Reswap"
	HeaderHXRetarget           = "HX-Retarget"
	HeaderHXReselect           = "HX-Reselect"
	HeaderHXTrigger            = "HX-Trigger"
	HeaderHXTriggerAfterSwap   = "HX-Trigger-After-Swap"
	HeaderHXTriggerAfterSettle = "HX-Trigger-After-Settle"
)

// HTMX request headers.
const (
	HeaderHXRequest               = "HX-Request"
	HeaderHXBoosted               = "HX-Boosted"
	HeaderHXCurrentURL            = "HX-Current-URL"
	HeaderHXHistoryRestoreRequest = "HX-History-Restore-Request"
	HeaderHXPrompt                = "HX-Prompt"
	HeaderHXTarget                = "HX-Target"
	HeaderHXTriggerName           = "HX-Trigger-Name"
	HeaderHXTriggerHeader         = "HX-Trigger"
)

// HTMXOption sets one HTMX response header.
type HTMXOption func(*htmxConfig)

type htmxConfig struct {
	trigger            map[string]any
	triggerAfterSwap   map[string]any
	triggerAfterSettle map[string]any
	pushURL            string
	replaceURL         string
	redirect           string
	refresh            bool
	reswap             string
	retarget           string
	reselect           string
	location           any
}

// WithHTMX adds HTMX control headers to resp and returns it. Event maps and
// location objects that cannot be encoded as JSON are skipped.
//
//	return response.WithHTMX(response.HTML(row),
//		response.TriggerEvent("user:created", map[string]any{"id": id}),
//		response.Reswap("outerHTML"),
//	), nil
func WithHTMX(resp *handler.Response, opts ...HTMXOption) *handler.Response {
	if resp == nil || len(opts) == 0 {
		return resp
	}

	cfg := &htmxConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	switch v := cfg.location.(type) {
	case string:
		resp.SetHeader(HeaderHXLocation, v)
	case nil:
	default:
		setJSONHeader(resp, HeaderHXLocation, v)
	}

	if cfg.pushURL != "" {
		resp.SetHeader(HeaderHXPushURL, cfg.pushURL)
	}
	if cfg.replaceURL != "" {
		resp.SetHeader(HeaderHXReplaceURL, cfg.replaceURL)
	}
	if cfg.redirect != "" {
		resp.SetHeader(HeaderHXRedirect, cfg.redirect)
	}
	if cfg.refresh {
		resp.SetHeader(HeaderHXRefresh, "true")
	}
	if cfg.reswap != "" {
		resp.SetHeader(HeaderHXReswap, cfg.reswap)
	}
	if cfg.retarget != "" {
		resp.SetHeader(HeaderHXRetarget, cfg.retarget)
	}
	if cfg.reselect != "" {
		resp.SetHeader(HeaderHXReselect, cfg.reselect)
	}

	if len(cfg.trigger) > 0 {
		setJSONHeader(resp, HeaderHXTrigger, cfg.trigger)
	}
	if len(cfg.triggerAfterSwap) > 0 {
		setJSONHeader(resp, HeaderHXTriggerAfterSwap, cfg.triggerAfterSwap)
	}
	if len(cfg.triggerAfterSettle) > 0 {
		setJSONHeader(resp, HeaderHXTriggerAfterSettle, cfg.triggerAfterSettle)
	}
	return resp
}

func setJSONHeader(resp *handler.Response, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		resp.SetHeader(key, string(data))
	}
}

// Trigger replaces the HX-Trigger events.
func Trigger(events map[string]any) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.trigger = events
	}
}

// TriggerEvent adds one HX-Trigger event. Repeated calls merge.
func TriggerEvent(name string, detail any) HTMXOption {
	return func(cfg *htmxConfig) {
		if cfg.trigger == nil {
			cfg.trigger = make(map[string]any)
		}
		cfg.trigger[name] = detail
	}
}

// TriggerAfterSwap sets events fired after the swap phase.
func TriggerAfterSwap(events map[string]any) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.triggerAfterSwap = events
	}
}

// TriggerAfterSettle sets events fired after the settle phase.
func TriggerAfterSettle(events map[string]any) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.triggerAfterSettle = events
	}
}

// PushURL pushes url onto the browser history. "false" prevents it.
func PushURL(url string) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.pushURL = url
	}
}

// ReplaceURL replaces the current browser URL. "false" prevents it.
func ReplaceURL(url string) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.replaceURL = url
	}
}

// HTMXRedirect makes the client do a full page redirect.
func HTMXRedirect(url string) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.redirect = url
	}
}

func Refresh() HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.refresh = true
	}
}

// Reswap changes the swap strategy, e.g. Reswap("innerHTML", "swap:500ms").
func Reswap(method string, modifiers ...string) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.reswap = strings.Join(append([]string{method}, modifiers...), " ")
	}
}

// Retarget swaps into the element matching the CSS selector instead.
func Retarget(selector string) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.retarget = selector
	}
}

// Reselect picks the part of the response matching the CSS selector.
func Reselect(selector string) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.reselect = selector
	}
}

// Location navigates without a full reload. urlOrObject is a path or a
// location object encoded as JSON.
func Location(urlOrObject any) HTMXOption {
	return func(cfg *htmxConfig) {
		cfg.location = urlOrObject
	}
}

// IsHTMXRequest reports whether r was sent by htmx.
func IsHTMXRequest(r *http.Request) bool {
	return r.Header.Get(HeaderHXRequest) == "true"
}

// IsHTMXBoosted reports whether r comes from an hx-boost link or form.
func IsHTMXBoosted(r *http.Request) bool {
	return r.Header.Get(HeaderHXBoosted) == "true"
}

// HTMXRequestHeaders holds the headers htmx sends with each request.
type HTMXRequestHeaders struct {
	Request        bool
	Boosted        bool
	CurrentURL     string
	HistoryRestore bool
	Prompt         string // user input from hx-prompt
	Target         string // id of the target element
	TriggerName    string
	Trigger        string // id of the triggering element
}

// GetHTMXHeaders reads the htmx request headers of r.
func GetHTMXHeaders(r *http.Request) HTMXRequestHeaders {
	return HTMXRequestHeaders{
		Request:        r.Header.Get(HeaderHXRequest) == "true",
		Boosted:        r.Header.Get(HeaderHXBoosted) == "true",
		CurrentURL:     r.Header.Get(HeaderHXCurrentURL),
		HistoryRestore: r.Header.Get(HeaderHXHistoryRestoreRequest) == "true",
		Prompt:         r.Header.Get(HeaderHXPrompt),
		Target:         r.Header.Get(HeaderHXTarget),
		TriggerName:    r.Header.Get(HeaderHXTriggerName),
		Trigger:        r.Header.Get(HeaderHXTriggerHeader),
	}
}
