package model

import (
	"time"

	"github.com/AnTengye/cvintake/backend/extract"
)

// Application is a submitted job application with its extracted CV data
type Application struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Email         string                  `json:"email"`
	Phone         string                  `json:"phone"`
	CVURL         string                  `json:"cvUrl"`
	FileName      string                  `json:"fileName"`
	FileType      string                  `json:"fileType"`
	FileSize      int64                   `json:"fileSize"`
	Status        string                  `json:"status"`
	ExtractedData extract.ExtractedCVData `json:"extractedData"`
	SubmittedAt   time.Time               `json:"submittedAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

// Application status constants
const (
	StatusNew         = "new"
	StatusReviewing   = "reviewing"
	StatusShortlisted = "shortlisted"
	StatusRejected    = "rejected"
	StatusHired       = "hired"
)

// ValidStatus reports whether s is a known application status
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusReviewing, StatusShortlisted, StatusRejected, StatusHired:
		return true
	}
	return false
}

// ScheduledEmail is a follow-up e-mail waiting for its send time
type ScheduledEmail struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	To            string     `json:"to"`
	Name          string     `json:"name"`
	CVURL         string     `json:"cvUrl"`
	ScheduledFor  time.Time  `json:"scheduledFor"`
	Sent          bool       `json:"sent"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}
