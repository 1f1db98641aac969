// Package api defines the wire types of the DocQA HTTP API.
//
// # API Overview
//
// DocQA answers questions about one pre-indexed document:
//   - POST /query: ask a question with optional chat history
//   - GET /health: component status (index, lexical, vector, llm)
//   - GET /healthz, GET /ready: liveness and readiness checks
//   - GET /version and GET /: build information and endpoint banner
//
// Metrics are served separately on the metrics port at /metrics.
//
// # Errors
//
// Failures use a common envelope:
//
//	{"success": false, "error": {"code": "INVALID_REQUEST", "message": "..."}}
//
// INVALID_REQUEST maps to 400, INDEX_UNAVAILABLE, GENERATION_UNAVAILABLE and
// SYNTHESIS_UNAVAILABLE to 503, TIMEOUT to 504 and everything else to 500.
package api
