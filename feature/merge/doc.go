// Package merge exposes the merge engine over HTTP.
//
// # HTTP Endpoints
//
//   - POST /merge : Synthesizes and executes a merge (supports ?dry_run=true).
//   - POST /merge/plan : Synthesizes a merge and returns the statement without executing it.
//
// Validation, schema and hazard errors answer 400. A merge rolled back because its
// variance exceeded the threshold answers 409 with the outcome attached. Any other
// failure answers 500.
package merge
