// Package server is the ZyloFM JSON API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// "METHOD /path/{param}" patterns on an [http.ServeMux]; global [Middleware] wraps every route in
// reverse order (last added executes first) and route middleware such as [RequireRole] runs inside it.
//
// The global stack is [RequestID], [Logging], [Recover], [CORS], [Authenticate] and, when a
// rate is configured, [RateLimit] keyed by user id or client address.
//
// # Responses
//
// Successful responses are {"data": ...}, paginated listings add {"meta": {"page", "page_size", "total"}}.
// Failures are {"error": "...", "request_id": "..."} with the status derived from the sentinel
// errors in internal/shared: not found is 404, conflicts and invalid transitions are 409,
// rejected uploads 422, bad input 400, missing or invalid tokens 401 and missing roles 403.
//
// # Roles
//
// Catalog routes are public. /api/dj/* and /api/uploads need the dj role, /api/admin/* the admin
// role. Tokens are resolved to the current user on every request, so promotions and deletions
// apply immediately.
//
// # Google Sign-In
//
// [OAuthHandler] implements the authorization code flow. The start route sets a state cookie
// (CSRF protection) and redirects to Google; the callback verifies it, exchanges the code and
// signs the user in, linking accounts that share an email.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
