// Package util provides error types, context helpers and validation
// functions shared by the relay packages.
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - ConfigError: invalid relay or vector configuration (fatal at startup)
//   - DiscoveryError: an inspector candidate that could not be loaded
//   - InspectorError: an inspector invocation that failed
//   - BackendError: a dial, timeout or transport failure while relaying
//   - ValidationError: a set of invalid configuration fields
//
// # Context Helpers
//
// Connection-scoped timing:
//
//	ctx = util.ContextWithStartTime(ctx, time.Now())
//	elapsed := util.ElapsedTime(ctx)
//
// # Validation
//
// Input validation helpers for ports, status codes and header names:
//
//	err := util.ValidatePort(8080)
//	err := util.ValidateHeaderName("X-Route")
package util
