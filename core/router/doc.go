// Package router provides the route registry: a segment radix tree that maps
// (method, path) pairs to arbitrary values with deterministic precedence.
//
// # Pattern Syntax
//
//   - literal segments: /users/profile
//   - named parameters: /users/:id
//   - optional parameters: /users/:id?
//   - trailing catch-all: /files/* (captured under the key "*")
//
// Empty patterns normalize to "/" and a trailing slash is ignored on both
// registration and lookup.
//
// # Precedence
//
// At every segment a static child is tried first, then a named parameter, then
// an optional parameter, then a catch-all. The lookup backtracks when a branch
// has no endpoint for the requested method, so /users/me registered for GET
// does not shadow /users/:id registered for POST. For a given path an exact
// method match beats a route registered for all methods.
//
//	reg := router.New[string]()
//	_ = reg.Register(http.MethodGet, "/users/:id", "user")
//	_ = reg.Register(http.MethodGet, "/users/me", "me")
//
//	m, ok := reg.Resolve(http.MethodGet, "/users/me")   // "me"
//	m, ok = reg.Resolve(http.MethodGet, "/users/42")    // "user", m.Params["id"] == "42"
//
// Registering the same method and pattern twice replaces the earlier value.
// The registry is safe for concurrent use.
package router
