package audit

import "time"

// Entry is an append-only record of a service action. Entity references are
// opaque strings, never enforced foreign keys.
type Entry struct {
	ID             int64     `json:"id" db:"id"`
	Action         string    `json:"action" db:"action"`
	EntityName     string    `json:"entity_name" db:"entity_name"`
	EntityID       string    `json:"entity_id" db:"entity_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	UserEmail      string    `json:"user_email" db:"user_email"`
	OldValues      string    `json:"old_values,omitempty" db:"old_values"`
	NewValues      string    `json:"new_values,omitempty" db:"new_values"`
	Changes        string    `json:"changes,omitempty" db:"changes"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	IPAddress      string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      string    `json:"user_agent,omitempty" db:"user_agent"`
	AdditionalInfo string    `json:"additional_info,omitempty" db:"additional_info"`
}
