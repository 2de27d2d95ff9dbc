package storage

import "time"

// ServerCapability records the API level detected for one server origin,
// so later reviews against the same server skip the version probe.
type ServerCapability struct {
	ID           uint      `gorm:"primaryKey"`
	Origin       string    `gorm:"uniqueIndex;size:512;not null"`
	APIVersion   string    `gorm:"size:16"`
	VersionLabel string    `gorm:"size:64"`
	DetectedAt   time.Time `gorm:"not null"`
}

// ReviewRecord is the audit trail of one completed fetch: which review
// was read, from where, and how much content came back. No diff content
// and no credentials are stored.
type ReviewRecord struct {
	ID            string `gorm:"primaryKey;size:36"`
	Platform      string `gorm:"size:32;not null;index"`
	Organization  string `gorm:"size:256;not null"`
	Project       string `gorm:"size:256"`
	Repository    string `gorm:"size:256;not null"`
	PullRequestID int    `gorm:"not null"`
	FileCount     int
	TotalLines    int
	CommentCount  int
	CreatedAt     time.Time
}
