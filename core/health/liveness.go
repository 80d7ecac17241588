package health

import (
	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/response"
)

// Liveness indicates if the service process is running.
// Always returns "ALIVE" with 200 OK. No dependency checks.
func Liveness(*handler.Context) (any, error) {
	return response.Text("ALIVE"), nil
}

// NoContent returns HTTP 204 without body. Ideal for high-frequency checks.
func NoContent(*handler.Context) (any, error) {
	return response.NoContent(), nil
}
