// Package server provides the HTTP API for session control, monitoring
// and live transcript streaming over websockets.
package server
