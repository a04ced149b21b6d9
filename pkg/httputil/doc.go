// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteBadRequest(w, "role is required")
//	httputil.WriteRateLimited(w, retryAfter)
//
// Error bodies carry a message, a machine-readable code and the request ID:
//
//	{"error": "business not found", "code": "not_found", "requestId": "3f2a..."}
//
// # Request Parsing
//
//	var req AddMemberRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400, or 413 past the body limit
//	}
//	businessID := httputil.PathParam(r, "businessId")
//	page, err := httputil.ParsePage(r, 100, 1000)
//
// # Middleware
//
//	api := httputil.Chain(
//		httputil.RequestID,
//		httputil.AccessLog(logger),
//		httputil.Deadline(10*time.Second),
//		httputil.RequireJSON,
//		httputil.LimitBody(1<<20),
//	)(router)
//
// CORS answers preflights itself, so it wraps the router rather than a route:
//
//	handler := httputil.CORS([]string{"https://app.example.com"})(api)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and rate limiting middleware
package httputil
