package model

import "time"

// AuditEvent records a security-relevant action, currently login attempts.
type AuditEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Action    string    `gorm:"size:32;not null;index" json:"action"`
	Subject   string    `gorm:"size:128;not null" json:"subject"`
	ClientIP  string    `gorm:"size:64" json:"client_ip"`
	Success   bool      `gorm:"not null" json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	AuditActionLogin = "login"
)
