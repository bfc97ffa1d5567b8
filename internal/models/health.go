package models

// Health is the /health response body.
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Ping is the liveness response body.
type Ping struct {
	Message string `json:"message"`
}
