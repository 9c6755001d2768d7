// Package relay correlates user messages with agent replies.
//
// # Overview
//
// The OpenClaw runtime accepts a message without answering it. The reply
// shows up some time later in the session history. The Correlator bridges
// the two: Submit records the user message, forwards it, and opens a Ticket;
// a goroutine per ticket polls the history until a reply appears or the
// ticket's deadline passes.
//
// # Event Flow
//
// For a successful exchange viewers see, in order:
//
//	message-added (user)
//	typing-state {isTyping: true}
//	message-added (assistant)
//	conversations-changed        (first exchange only, after the title is set)
//	typing-state {isTyping: false}
//	status-snapshot
//
// A rejected submit ends with typing-state false and a connection-notice
// with connected=false. A ticket that times out ends with typing-state false
// and a connection-notice telling the user the agent is still working.
//
// # Duplicate Suppression
//
// Every delivered reply is fingerprinted by conversation and text in a
// dedupe.Cache. A reply already fingerprinted resolves the ticket without
// writing anything. This also means two genuinely distinct replies with the
// same text in one conversation collapse into one.
//
// # Lifetime
//
// Polling runs under the Correlator's own context rather than the caller's.
// Close cancels every outstanding ticket and waits for the goroutines.
package relay
