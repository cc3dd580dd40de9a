// Package gateway contains the request-boundary middlewares guarding the
// service's own HTTP surface.
//
// Two independent authenticators protect two independent surfaces:
//   - APIKeyGateway is the path-scoped shared-secret check on the
//     externally advertised endpoint, with optional rewriting of the
//     advertised path to the internal one.
//   - VerifyAPIKey is the relaxed bearer check on the MCP JSON-RPC
//     endpoint; it is a no-op when no secret is configured.
//
// Both are stateless per request: they read immutable configuration and
// either forward or reject.
package gateway
