// Package gateway wires the silverfox relay together and serves it over HTTP.
//
// # Architecture
//
//	┌──────────────┐   WebSocket /ws    ┌─────────────┐
//	│   Viewers    │◄──────────────────►│  hub.Hub    │
//	└──────────────┘                    └──────┬──────┘
//	                                           │ Submit / Publish
//	┌──────────────┐   REST /api/*      ┌──────▼───────────┐    HTTP     ┌──────────┐
//	│   Clients    │◄──────────────────►│ relay.Correlator │◄───────────►│ OpenClaw │
//	└──────────────┘                    └──────┬───────────┘             └──────────┘
//	                                           │
//	                                    ┌──────▼──────┐
//	                                    │ store.Store │
//	                                    └─────────────┘
//
// The hub and the correlator reference each other: the correlator publishes
// through the hub and the hub submits through the correlator. New builds the
// hub first and joins them with hub.SetSubmitter.
//
// # HTTP Endpoints
//
//	GET    /health                          liveness
//	GET    /health/ready                    database reachable
//	GET    /ws                              viewer channel
//	GET    /api/health                      {status, timestamp}
//	GET    /api/status                      agent runtime status
//	GET    /api/conversations[?sessionKey=] list, most recently updated first
//	POST   /api/conversations               create
//	GET    /api/conversations/{id}          get
//	DELETE /api/conversations/{id}          delete with messages
//	GET    /api/conversations/{id}/messages list, ?limit=N for the newest N
//	GET    /metrics                         Prometheus, when enabled
//
// Errors are JSON objects {"error": "...", "status": N}.
//
// # Lifecycle
//
// Run listens on server.http_addr and runs the HTTP server next to the hub's
// status loop in an errgroup. When the context is canceled, Shutdown stops
// the HTTP server, disconnects viewers, cancels pending replies and closes
// the store.
package gateway
