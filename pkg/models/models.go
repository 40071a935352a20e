package models

import (
	"encoding/json"
	"time"
)

// Device statuses. Inactive devices are excluded from scheduled passes.
const (
	DeviceActive   = "active"
	DeviceWarning  = "warning"
	DeviceInactive = "inactive"
)

// CredentialProfile represents the credential_profiles table.
// Payload is stored encrypted and only decrypted at session-open time.
type CredentialProfile struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"not null" json:"name" binding:"required"`
	Description string    `json:"description"`
	Protocol    string    `gorm:"not null" json:"protocol" binding:"required,oneof=ssh winrm"`
	Payload     string    `gorm:"not null" json:"payload" binding:"required" gocrypt:"aes"` // Encrypted credential data
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Device represents the devices table: one manageable network element.
type Device struct {
	ID                  int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	Hostname            string             `json:"hostname"`
	IPAddress           string             `gorm:"not null;type:inet" json:"ip_address" binding:"required,ip"`
	Port                int                `gorm:"not null;default:22" json:"port" binding:"min=0,max=65535"`
	Transport           string             `gorm:"not null;default:'ssh'" json:"transport" binding:"omitempty,oneof=ssh winrm"`
	DeviceType          string             `json:"device_type" binding:"omitempty,oneof=router switch firewall server"`
	Location            string             `json:"location"`
	Status              string             `gorm:"default:'active'" json:"status" binding:"omitempty,oneof=active warning inactive"`
	CredentialProfileID int64              `gorm:"not null" json:"credential_profile_id" binding:"required"`
	CredentialProfile   *CredentialProfile `gorm:"foreignKey:CredentialProfileID" json:"credential_profile,omitempty"`
	CreatedAt           time.Time          `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// CommandResult represents the command_results table.
// One row per command executed against a device; immutable once written.
type CommandResult struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PassID     int64     `gorm:"index" json:"pass_id"`
	DeviceID   int64     `gorm:"not null;index" json:"device_id"`
	Command    string    `gorm:"not null" json:"command"`
	Output     string    `json:"output"`
	Error      string    `json:"error,omitempty"`
	Success    bool      `json:"success"`
	CapturedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"captured_at"`
}

// FleetPass represents the fleet_passes table: one scheduled or on-demand
// execution of a command batch across the fleet. Outcomes holds the
// per-device outcome list as JSON.
type FleetPass struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	StartedAt   time.Time       `gorm:"not null" json:"started_at"`
	EndedAt     time.Time       `json:"ended_at"`
	Trigger     string          `gorm:"default:'scheduled'" json:"trigger"`
	Summary     string          `gorm:"not null" json:"summary"`
	DeviceCount int             `json:"device_count"`
	FailedCount int             `json:"failed_count"`
	Outcomes    json.RawMessage `gorm:"type:jsonb" json:"outcomes"`
	CreatedAt   time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Alert represents the alerts table.
type Alert struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID   int64      `gorm:"not null;index" json:"device_id" binding:"required"`
	Severity   string     `gorm:"not null" json:"severity" binding:"required,oneof=critical high medium low"`
	Message    string     `gorm:"not null" json:"message" binding:"required"`
	DedupKey   string     `gorm:"index" json:"dedup_key"`
	Resolved   bool       `gorm:"default:false" json:"resolved"`
	CreatedAt  time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// TableName overrides the default table name logic
func (CredentialProfile) TableName() string { return "credential_profiles" }
func (Device) TableName() string            { return "devices" }
func (CommandResult) TableName() string     { return "command_results" }
func (FleetPass) TableName() string         { return "fleet_passes" }
func (Alert) TableName() string             { return "alerts" }

// GetID methods to satisfy Identifiable interface
func (c CredentialProfile) GetID() int64 { return c.ID }
func (d Device) GetID() int64            { return d.ID }
func (r CommandResult) GetID() int64     { return r.ID }
func (p FleetPass) GetID() int64         { return p.ID }
func (a Alert) GetID() int64             { return a.ID }
