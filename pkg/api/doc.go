// Package api exposes the HTTP surface: document CRUD, API token
// management, blueprint uploads, and the caller's own profile, all behind
// the authentication and rate limiting middleware.
package api
