package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Default limits applied when a route does not configure its own.
const (
	DefaultMaxBodySize = 1 << 20  // 1 MB
	DefaultMaxMemory   = 10 << 20 // 10 MB
)

// Kind is the body parsing strategy.
type Kind string

const (
	KindNone        Kind = "none"
	KindText        Kind = "text"
	KindJSON        Kind = "json"
	KindFormData    Kind = "formdata"
	KindURLEncoded  Kind = "urlencoded"
	KindArrayBuffer Kind = "arrayBuffer"
)

var aliases = map[string]Kind{
	"none":        KindNone,
	"text":        KindText,
	"json":        KindJSON,
	"formdata":    KindFormData,
	"urlencoded":  KindURLEncoded,
	"arraybuffer": KindArrayBuffer,
}

// Negotiate resolves the parsing strategy from a route's declared kind and
// the request Content-Type. It also returns the effective media type, which
// is what content-type filtered parse hooks are matched against.
func Negotiate(declared, contentType string) (Kind, string) {
	if declared != "" {
		if k, ok := aliases[strings.ToLower(declared)]; ok {
			return k, mediaTypeOf(k, contentType)
		}
		mt := mediaType(declared)
		return kindOf(mt), mt
	}
	if contentType == "" {
		return KindNone, ""
	}
	mt := mediaType(contentType)
	return kindOf(mt), mt
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Strip parameters when the header is malformed
		mt = contentType
		if idx := strings.Index(mt, ";"); idx != -1 {
			mt = mt[:idx]
		}
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func mediaTypeOf(k Kind, contentType string) string {
	if contentType != "" {
		return mediaType(contentType)
	}
	switch k {
	case KindJSON:
		return "application/json"
	case KindText:
		return "text/plain"
	case KindFormData:
		return "multipart/form-data"
	case KindURLEncoded:
		return "application/x-www-form-urlencoded"
	case KindArrayBuffer:
		return "application/octet-stream"
	}
	return ""
}

func kindOf(mt string) Kind {
	switch {
	case mt == "application/json", strings.HasSuffix(mt, "+json"):
		return KindJSON
	case mt == "multipart/form-data":
		return KindFormData
	case mt == "application/x-www-form-urlencoded":
		return KindURLEncoded
	case mt == "application/octet-stream":
		return KindArrayBuffer
	case strings.HasPrefix(mt, "text/"):
		return KindText
	}
	return KindNone
}

// Payload is a parsed request body.
//
// Value holds:
//   - any decoded from JSON for KindJSON
//   - string for KindText
//   - url.Values for KindURLEncoded and KindFormData
//   - []byte for KindArrayBuffer
//   - nil for KindNone
type Payload struct {
	Kind  Kind
	Value any
	Raw   []byte
	Files map[string][]*multipart.FileHeader
}

// Parse reads and decodes the request body according to kind.
// limit caps the number of bytes read; zero means DefaultMaxBodySize.
func Parse(r *http.Request, kind Kind, limit int64) (Payload, error) {
	p := Payload{Kind: kind}
	if kind == KindNone || r.Body == nil || r.Body == http.NoBody {
		return p, nil
	}
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}

	// Fail fast if request context is already cancelled to avoid processing doomed requests
	if err := r.Context().Err(); err != nil {
		return p, fmt.Errorf("%w: %v", ErrFailedToReadBody, err)
	}

	if kind == KindFormData {
		return parseMultipart(r, limit)
	}

	// Read with +1 byte to detect oversized requests efficiently
	raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrFailedToReadBody, err)
	}
	if int64(len(raw)) > limit {
		return p, fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, limit)
	}
	p.Raw = raw

	switch kind {
	case KindJSON:
		if len(bytes.TrimSpace(raw)) == 0 {
			return p, nil
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return p, fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}
		p.Value = v
	case KindText:
		p.Value = string(raw)
	case KindURLEncoded:
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return p, fmt.Errorf("%w: %v", ErrFailedToParseForm, err)
		}
		p.Value = values
	case KindArrayBuffer:
		p.Value = raw
	default:
		return p, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, kind)
	}
	return p, nil
}

func parseMultipart(r *http.Request, limit int64) (Payload, error) {
	p := Payload{Kind: KindFormData}
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !validateBoundary(params["boundary"]) {
		return p, fmt.Errorf("%w: invalid multipart boundary", ErrFailedToParseForm)
	}
	reader := multipart.NewReader(http.MaxBytesReader(nil, r.Body, limit), params["boundary"])
	form, err := reader.ReadForm(min(limit, DefaultMaxMemory))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return p, fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, limit)
		}
		return p, fmt.Errorf("%w: %v", ErrFailedToParseForm, err)
	}
	p.Value = url.Values(form.Value)
	p.Files = form.File
	return p, nil
}

// validateBoundary rejects malformed or oversized multipart boundaries.
func validateBoundary(boundary string) bool {
	if boundary == "" || len(boundary) > 100 {
		return false
	}
	return !strings.ContainsAny(boundary, "\x00\r\n")
}
