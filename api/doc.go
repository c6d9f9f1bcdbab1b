// Package api provides the wire types and OpenAPI/Swagger documentation
// for the TaskRoute API.
//
// # API Overview
//
// TaskRoute provides a RESTful API for:
//   - Single-shot task routing with capability dispatch (POST /route)
//   - Capability provider listing, introspection and direct invocation
//   - Aggregated health monitoring and metrics
//
// # Request Context
//
// Every endpoint accepts and echoes the request context headers:
//
//	x-trace-id: trace identifier, generated when absent
//	x-run-id: run identifier, generated when absent
//	x-policy-set: policy set identifier, defaults to "default"
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8000
//
// # Generating Documentation
//
// To regenerate Swagger documentation using swag:
//
//	swag init -g cmd/taskroute/main.go -o api --parseDependency --parseInternal
package api
