// Package server provides HTTP routing, middleware, the OAuth callback handler, and the JSON API.
//
// # Router Infrastructure
//
// [Router] wraps [http.ServeMux] method patterns ("POST /api/roll") and wraps each route in the
// [Middleware] registered before it, first added outermost. [Logging] and [Recover] are the stock middleware.
//
// # OAuth Callback Handler
//
// [OAuthCallback] completes the Google authorization code flow for `cratedig auth youtube`.
// The first request to reach it decides the single [OAuthResult]; every failure wraps
// shared.ErrAuthFailed.
//
// # JSON API
//
// [API] exposes the roll pipeline for `cratedig serve`:
//
//	GET    /health                 liveness, plus proxy reachability when configured
//	GET    /api/library            active library (?search=, ?genre=)
//	POST   /api/library            upload a CSV export (multipart "file" or raw body)
//	GET    /api/library/genres     genre counts
//	POST   /api/roll               {mode, size, genres} -> roll preview
//	POST   /api/playlists          {title, roll, tracks} -> playlist + history record
//	GET    /api/rolls              history page (?limit=, ?offset=)
//	GET    /api/rolls/{id}         one record
//	DELETE /api/rolls/{id}         delete a record
//	POST   /api/rolls/check        flag (?prune=true deletes) rolls whose playlist is gone
//	GET    /api/youtube/status     stored YouTube connection
//
// Errors are JSON {"error": message} with the status chosen by the error taxonomy: 400 for input and
// precondition failures, 404 for unknown rolls, 409 for a superseded roll, 502 when a collaborator fails.
package server
