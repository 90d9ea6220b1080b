// Package middleware provides the request-scoped HTTP layers: bearer
// authentication with profile resolution, and Redis-backed distributed rate
// limiting.
package middleware
