// Package oauth implements the Dida365 OAuth 2.0 authorization-code flow:
// authorization URL construction, a one-shot local callback listener that
// captures the redirected authorization code, code-for-token exchange, and
// refresh-token renewal.
//
// The flow is interactive and single-flight: Authorize blocks the calling
// goroutine until the browser redirect delivers a code or the deadline
// fires. Callers must not run two flows concurrently against the same
// Client; each flow owns its own listener and result slot, so separate
// Clients never alias state.
//
// All failures surface as error returns. Transport faults, non-2xx token
// endpoint responses, and callback timeouts are reported to the caller so
// the interactive flow can diagnose and retry without crashing the host.
package oauth
