// Package middleware provides gin middleware for the relayd HTTP API:
// CORS and token-bucket rate limiting per client or globally.
package middleware
