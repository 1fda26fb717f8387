package http

// IngestRequest is the request body for POST /api/v1/projects/:project_id/documents.
type IngestRequest struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// SearchRequest is the request body for POST /api/v1/projects/:project_id/search.
// A zero TopK uses the server default.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// ErrorResponse is returned for failures outside the engine, such as
// malformed bodies or rate limiting.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
