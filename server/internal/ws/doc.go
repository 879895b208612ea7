// Package ws streams alert state to browsers over WebSocket.
//
// Hub sends every connected client the full alert list on connect, on every
// tick of its interval, and whenever Notify is called (after each evaluation
// cycle). Messages look like:
//
//	{"event": "alerts", "data": { /* same schema as GET /api/v1/alerts */ }}
//
// The upgrader accepts all origins; restrict them at the reverse proxy.
// The server mounts the hub at /ws/alerts.
package ws
