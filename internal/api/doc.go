// Package api serves the device registry over HTTP.
//
// Device endpoints speak text/plain so that simple home-automation clients
// can drive them:
//
//	GET     /api/v1/devices/fan/bedroom         current state
//	PUT     /api/v1/devices/fan/bedroom/speed   body "HIGH", returns "3"
//	OPTIONS /api/v1/devices/fan/bedroom         available states, one per line
//
// The same handlers are also mounted at /fans/{name} and /lights/{name}.
// JSON endpoints list devices, return state history and health, and
// /api/v1/stream pushes state changes over a WebSocket.
package api
