// Package server holds the HTTP server configuration.
//
// The start command builds the Fiber app from this Config: the listen port, the optional
// API key that protects /api routes, and the request body limit.
package server
