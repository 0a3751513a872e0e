package models

import "time"

// Sequence is a monotonically increasing counter keyed by a period prefix
// such as "QC202610".
type Sequence struct {
	Prefix    string `gorm:"primaryKey;size:32"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// InspectorLock is a per-inspector row locked while an assignment checks
// and updates that inspector's workload.
type InspectorLock struct {
	InspectorID string `gorm:"primaryKey;size:64"`
	UpdatedAt   time.Time
}
