// Package api exposes job operations over HTTP as JSON.
//
// # Routes
//
//	GET    /api/health                 store reachability, no auth
//	GET    /api/jobs?status=&press=    list, ascending priority
//	POST   /api/jobs                   create
//	GET    /api/jobs/{id}              get
//	PATCH  /api/jobs/{id}              partial update
//	POST   /api/jobs/{id}/timeline     append one operator event
//	DELETE /api/jobs/{id}              delete, returns the removed job
//
// Every /api/jobs route requires an authenticated caller.
//
// # Errors
//
// Failures are written as {"code": "...", "error": "..."} with a stable code
// per job error kind: not_found (404), conflict (409), forbidden (403),
// validation_failed (400), unauthorized (401), transient (503). Anything else
// is internal_error (500) with a generic message; the detail goes to the log
// under the request id echoed in X-Request-ID.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 in UTC.
package api
