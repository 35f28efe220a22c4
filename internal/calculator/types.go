package calculator

import "go-keypad-calc/internal/history"

// KeysRequest is the JSON body for POST /calculator/sessions/{id}/keys and
// POST /calculator/evaluate. Every rune of Keys is one key press.
type KeysRequest struct {
	Keys string `json:"keys"`
}

// SessionResponse describes a session's current screen.
type SessionResponse struct {
	ID      string `json:"id"`
	Screen  string `json:"screen"`
	Errored bool   `json:"errored"`
}

// KeysResponse is the JSON response after a batch of keys was applied.
type KeysResponse struct {
	ID       string `json:"id,omitempty"`
	Screen   string `json:"screen"`
	Errored  bool   `json:"errored"`
	Rejected int    `json:"rejected"`
}

// HistoryResponse is the JSON response for GET /calculator/sessions/{id}/history.
type HistoryResponse struct {
	ID      string          `json:"id"`
	Entries []history.Entry `json:"entries"`
}
