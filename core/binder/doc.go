// Package binder negotiates how a request body is read and decodes it.
//
// A route may declare a body kind by alias (json, text, formdata,
// urlencoded, arrayBuffer, none) or by full MIME type. When nothing is
// declared the request's Content-Type header decides. Unknown media types
// resolve to KindNone so that parse hooks can take over.
//
//	kind, mime := binder.Negotiate("", r.Header.Get("Content-Type"))
//	payload, err := binder.Parse(r, kind, binder.DefaultMaxBodySize)
//	if err != nil {
//		// err wraps one of the Err* sentinels
//	}
//
// Struct binding helpers decode the raw JSON body (Bind) or string values
// from query and path parameters (BindValues) into typed targets:
//
//	type SearchRequest struct {
//		Query string   `query:"q"`
//		Page  int      `query:"page"`
//		Tags  []string `query:"tags"` // ?tags=go&tags=web or ?tags=go,web
//	}
//
//	var req SearchRequest
//	err := binder.BindValues(&req, "query", r.URL.Query())
package binder
