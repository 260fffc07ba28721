package model

// QueryInput is the dispatcher's public input: one user query scoped to a
// conversation session.
type QueryInput struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}
