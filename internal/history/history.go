// Package history records answered chat requests. The store is optional;
// the service runs without it when no DSN is configured.
package history

import "time"

// Entry is one answered request as persisted.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Action    string    `json:"action"`
	Intent    string    `json:"intent,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	SQL       string    `json:"sql,omitempty"`
	RowCount  int       `json:"row_count"`
	Repaired  bool      `json:"repaired"`
	Grounded  bool      `json:"grounded"`
	CreatedAt time.Time `json:"created_at"`
}
