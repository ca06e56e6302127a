package models

import "strconv"

// Operation types accepted on the whiteboard.
const (
	OpDraw  = "draw"
	OpText  = "text"
	OpErase = "erase"
	OpClear = "clear"
)

// Point is a single coordinate on the drawing surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Operation is the canonical in-memory form of one whiteboard edit. Clients
// submit it in one of two wire encodings (see internal/whiteboard); stored
// logs always hold the canonical form. Once appended to a session's log an
// operation is immutable: erase and clear are appended like any other edit.
type Operation struct {
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type"`
	Points      []Point  `json:"points,omitempty"`
	Color       string   `json:"color,omitempty"`
	StrokeWidth float64  `json:"stroke_width,omitempty"`
	Text        string   `json:"text,omitempty"`
	Position    *Point   `json:"position,omitempty"`
	FontSize    float64  `json:"font_size,omitempty"`
	Targets     []string `json:"targets,omitempty"`
	Timestamp   int64    `json:"timestamp"`
	UserID      string   `json:"user_id"`
}

// Key returns the operation's identity used for deduplication: the
// client-generated id when present, otherwise author plus logical timestamp.
func (op Operation) Key() string {
	if op.ID != "" {
		return op.ID
	}
	return op.UserID + "@" + strconv.FormatInt(op.Timestamp, 10)
}

// WhiteboardState is the per-session aggregate: the timestamp-ordered
// operation log plus a version that increments by one per successful sync.
type WhiteboardState struct {
	SessionID  string      `json:"session_id"`
	Operations []Operation `json:"operations"`
	Version    int         `json:"version"`
}
