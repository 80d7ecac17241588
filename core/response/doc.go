// Package response builds and writes transport-neutral responses.
//
// Handlers return plain values; Normalize turns them into a *handler.Response:
//
//   - *handler.Response passes through unchanged
//   - nil becomes an empty 200 for GET and HEAD, 204 otherwise
//   - []byte becomes an application/octet-stream body
//   - io.Reader is streamed in chunks
//   - templ.Component is rendered as HTML
//   - iter.Seq2[any, error], iter.Seq[any] and receive channels are streamed
//     as Server-Sent Events, or as NDJSON when the client accepts
//     application/x-ndjson or the app is configured for it
//   - every other value is encoded as JSON
//
// Streams are primed before the response is committed: an error produced
// before the first chunk is returned from Normalize so it can be routed like
// any other failure. Once a chunk has been flushed, a producer error simply
// terminates the stream.
//
// Helper constructors cover the common cases:
//
//	return response.JSON(user), nil
//	return response.JSONWithStatus(created, http.StatusCreated), nil
//	return response.Text("pong"), nil
//	return response.Templ(views.Home(), http.StatusOK), nil
//	return response.Seq(func(yield func(int, error) bool) { ... }), nil
//
// Write sends a response over an http.ResponseWriter, flushing every stream
// chunk as it is produced.
package response
