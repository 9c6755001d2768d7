// Package hub is the relay's presentation channel.
//
// Browsers connect to GET /ws and become Viewers. Every frame in either
// direction is a JSON text message. The server sends relay events:
//
//	{"type": "message-added",         "payload": Message}
//	{"type": "typing-state",          "payload": {"isTyping": bool}}
//	{"type": "status-snapshot",       "payload": Status}
//	{"type": "connection-notice",     "payload": {"connected": bool, "message": string}}
//	{"type": "conversations-changed", "payload": {}}
//
// Viewers send commands:
//
//	{"type": "send", "content": "...", "conversationId": 7}
//	{"type": "status-refresh-request"}
//
// A send without conversationId goes to the most recently updated
// conversation of the configured session, which is created on demand.
// Invalid sends are answered with a connection-notice to the sender alone.
//
// Each viewer has a buffered send queue drained by its own write goroutine.
// When the queue is full the frame is dropped for that viewer only.
package hub
