package response

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/dmitrymomot/flowkit/core/handler"
)

var ErrNilTemplate = errors.New("template is nil")

// Template renders tmpl with data into a buffered text/html response with
// 200 OK status. A failed render yields a 500 response; use RenderTemplate
// to route the error through the app's error hooks instead.
func Template(tmpl *template.Template, data any) *handler.Response {
	return TemplateNameWithStatus(tmpl, "", data, http.StatusOK)
}

// TemplateWithStatus is Template with a custom status code.
func TemplateWithStatus(tmpl *template.Template, data any, status int) *handler.Response {
	return TemplateNameWithStatus(tmpl, "", data, status)
}

// TemplateName renders the named template of a collection, e.g. one built
// with ParseFiles or ParseGlob.
func TemplateName(tmpl *template.Template, name string, data any) *handler.Response {
	return TemplateNameWithStatus(tmpl, name, data, http.StatusOK)
}

// TemplateNameWithStatus is TemplateName with a custom status code.
func TemplateNameWithStatus(tmpl *template.Template, name string, data any, status int) *handler.Response {
	resp, err := RenderTemplate(tmpl, name, data, status)
	if err != nil {
		return errorBody(err)
	}
	return resp
}

// RenderTemplate buffers the template output so a failure leaves nothing
// written. An empty name executes tmpl itself. Errors wrap ErrRender.
//
//	app.Get("/", func(c *flowkit.Context) (any, error) {
//		return response.RenderTemplate(pages, "index", data, http.StatusOK)
//	})
func RenderTemplate(tmpl *template.Template, name string, data any, status int) (*handler.Response, error) {
	if status == 0 {
		status = http.StatusOK
	}
	var buf bytes.Buffer
	if err := executeTemplate(&buf, tmpl, name, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	resp := handler.NewResponse(status, buf.Bytes())
	resp.Header.Set("Content-Type", ContentTypeHTML)
	return resp, nil
}

// TemplateStream executes tmpl straight into the response writer. It saves
// the buffer for large pages, but a template error after the first write
// cannot change the status any more.
func TemplateStream(tmpl *template.Template, name string, data any, status int) *handler.Response {
	if tmpl == nil {
		return errorBody(ErrNilTemplate)
	}
	if status == 0 {
		status = http.StatusOK
	}
	resp := handler.NewResponse(status, nil)
	resp.Header.Set("Content-Type", ContentTypeHTML)
	resp.Render = func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(status)
		return executeTemplate(w, tmpl, name, data)
	}
	return resp
}

func executeTemplate(w io.Writer, tmpl *template.Template, name string, data any) error {
	if tmpl == nil {
		return ErrNilTemplate
	}
	if name != "" {
		return tmpl.ExecuteTemplate(w, name, data)
	}
	return tmpl.Execute(w, data)
}
