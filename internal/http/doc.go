// Package http serves the retrieval engine over a JSON API built on echo.
//
// Routes:
//
//	POST   /api/v1/projects/:project_id/documents  ingest {content, filename}
//	POST   /api/v1/projects/:project_id/search     search {query, top_k}
//	DELETE /api/v1/projects/:project_id/vectors    delete all project vectors
//	GET    /api/v1/stats                           store counts (bearer token)
//	GET    /health
//	GET    /metrics                                Prometheus
//
// The caller identity comes from the X-User-ID header, which an upstream
// auth layer is trusted to set. Engine error codes map to statuses:
// validation 400, authorization 404, provider 502, persistence and internal 500.
package http
