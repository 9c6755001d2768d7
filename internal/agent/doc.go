// Package agent is the relay's client for the OpenClaw agent runtime.
//
// # Overview
//
// The runtime exposes a small HTTP API for one session at a time:
//
//	POST /api/sessions/send               {sessionKey, message}
//	POST /api/sessions/{key}/history?limit=N  -> {messages: [{role, content, tokens?}]}
//	POST /api/sessions/{key}/status       -> {runtime, channel?, model?, totalTokens}
//
// Submitting a message does not return the reply. Replies appear later in
// the session history, which is why the relay polls FetchHistory.
//
// # Failure Model
//
// Client never returns errors to callers. Submit and FetchHistory report
// success as a bool, and FetchStatus degrades to a disconnected Status with
// runtime "unknown". Failures are logged and counted in the
// silverfox_agent_request_duration_seconds histogram.
//
// # Testing
//
// The agenttest subpackage provides a scriptable fake runtime:
//
//	srv := agenttest.NewServer(t, agent.DefaultSessionKey)
//	srv.SetEcho(10 * time.Millisecond)
//	client := srv.Client(time.Second)
package agent
