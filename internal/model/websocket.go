package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the envelope of every message on /ws/jobs/:jobId. Progress
// messages carry Progress, Status and Stage; complete messages carry Result;
// error messages carry Error.
type WSMessage struct {
	Type     string      `json:"type"`
	JobID    string      `json:"jobId,omitempty"`
	Progress int         `json:"progress,omitempty"`
	Status   JobStatus   `json:"status,omitempty"`
	Stage    string      `json:"stage,omitempty"`
	Result   interface{} `json:"result,omitempty"`
	Error    *WSError    `json:"error,omitempty"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
