// Package capability defines the backend interface the hub delegates to for
// everything that is not message routing: agent registration, tool execution,
// model selection, shared-context persistence, and handoff authorization.
//
// Two implementations exist: HTTPBackend (this package) talks to a remote
// capability service, and the local subpackage bundles a SQLite-backed
// backend for stand-alone deployments.
package capability
