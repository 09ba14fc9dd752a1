// Package request holds the JSON bodies accepted by the API.
package request

// CreatePlayerRequest is the request body for creating a guest player
type CreatePlayerRequest struct {
	Nickname string `json:"nickname"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SubmitRequest is the request body for finalizing a submission
type SubmitRequest struct {
	Texts []string `json:"texts"`
}

// VoteRequest is the request body for voting on a submission
type VoteRequest struct {
	SubmissionID string `json:"submission_id"`
	Category     string `json:"category"`
}
