// Package tokenstore provides persistent storage abstractions for issued
// OAuth credentials.
//
// Supports two storage backends with different deployment tradeoffs:
//   - EnvFile: dotenv-style file storage that upserts token assignments
//     while preserving unrelated configuration lines verbatim
//   - Keyring: OS-native credential storage (macOS Keychain, Windows
//     Credential Manager, Linux Secret Service)
//
// Both backends share the invariant that a load only succeeds when an
// access token is present: credentials never enter the system unless they
// originated from a successful exchange or refresh.
package tokenstore
