// Package server implements the OAuth token capture endpoint for VK's
// implicit grant flow.
//
// # Why a capture endpoint exists at all
//
// VK returns the access token appended after '#' in the redirect URL.
// Browsers never send the fragment to a server, so a plain callback handler
// would see nothing. The [Endpoint] therefore serves two paths:
//
//   - the redirect path answers with a tiny HTML page whose only job is to
//     re-navigate the browser, moving the path to real/ and rewriting the
//     fragment marker into a query-string append
//   - the capture path receives that second navigation with the token as an
//     ordinary access_token query parameter
//
// # Correlation
//
// The chat user's sender id is threaded through the whole round trip as the
// sender_id query parameter. [Endpoint.WaitForAuth] registers a pending wait
// keyed by that id; requests whose sender_id is missing, unparseable or not
// pending are ignored with 204 and the listener keeps serving. A callback
// for one user can never complete another user's wait.
//
// # Lifecycle
//
// The endpoint runs one long-lived listener multiplexing both paths (the Go
// equivalent of the two per-call listeners a platform with shareable port
// bindings would use). Waits are bounded by a timeout and by the caller's
// context; both tear the pending registration down before returning.
// [Endpoint.Shutdown] releases the socket itself.
//
// # Router infrastructure
//
// [BasicRouter] wraps [http.ServeMux] with per-route method filtering and a
// [Middleware] chain (request-id tagging, request logging) applied in
// reverse registration order.
package server
