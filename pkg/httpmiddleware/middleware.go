// Package httpmiddleware provides composable net/http middleware used by
// the API server: panic recovery, CORS, rate limiting, request IDs,
// logging, and OpenTelemetry instrumentation.
package httpmiddleware

import "net/http"

// Middleware is a function that wraps an http.Handler with additional
// behaviour.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h in order: the first middleware becomes the
// outermost wrapper and sees the request first.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
