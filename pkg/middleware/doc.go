// Package middleware provides HTTP middleware for the API server.
//
// It covers bearer-token authentication (resolving Authorization headers
// to accounts and placing them on the request context), an admin-only
// route guard, and Redis-backed rate limiting shared across instances.
package middleware
