// Package internal documents the DevConnector server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem responses, and routing
// - domain: users, profiles and posts with their services and repository contracts
// - storage: the Postgres repositories and the in-memory store used by tests
// - jobs: River workers that deliver welcome emails
// - auth, audit, config, metrics, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
