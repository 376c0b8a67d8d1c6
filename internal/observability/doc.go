// Package observability provides structured logging and metrics for the
// library portal.
//
// This package implements:
//   - zap logger construction (json for production, console for development)
//   - request-scoped loggers carrying the request ID
//   - Prometheus collectors for role assignment, access decisions and
//     catalog API calls
package observability
