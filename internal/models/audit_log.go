package models

import "time"

type AuditLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// ActorID is empty for transitions applied by the scheduler.
	ActorID  *string `gorm:"size:64" json:"actor_id"`
	Action   string  `gorm:"size:50;not null" json:"action"`
	Entity   string  `gorm:"size:50" json:"entity"`
	EntityID string  `gorm:"size:64;index" json:"entity_id"`
	Metadata string  `gorm:"type:text" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}
