// Package services implements the driving port interfaces.
//
// IngestService runs the load, chunk, embed, persist pipeline and
// ChatService runs the retrieve-then-generate loop. Services hold the
// business rules (batching, rate limiting, retries, context budgets)
// and orchestrate calls to driven ports; all I/O lives behind those
// ports in the adapter packages.
package services
