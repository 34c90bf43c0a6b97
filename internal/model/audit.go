package model

import "time"

// AuditEntry is one append-only audit row. Action follows the
// "resource.operation" convention, e.g. device.create, usage.export.
type AuditEntry struct {
	ID         int64     `db:"id" json:"id"`
	ActorID    *int64    `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	TargetType *string   `db:"target_type" json:"target_type"`
	TargetID   *int64    `db:"target_id" json:"target_id"`
	Details    *string   `db:"details" json:"details"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
