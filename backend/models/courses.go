package models

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment statuses as stored in enrollments.status.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusWishlist   = "wishlist"
)

// Course is catalog metadata. Read-only from this service.
type Course struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title           *string
	Category        *string
	Level           *string
	DurationMinutes *int
	LessonsCount    *int
	ThumbnailURL    *string
	Instructor      *string
	Rating          *float64
}

func (Course) TableName() string {
	return "courses"
}

// Enrollment links a user to a course. One row per (user, course).
type Enrollment struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID  `gorm:"type:uuid;index"`
	CourseID       *uuid.UUID `gorm:"type:uuid"`
	Progress       *float64   // 0-100
	Status         *string
	LastAccessedAt *time.Time
	LastLesson     *string
	CompletionETA  *time.Time `gorm:"column:completion_eta"`
	Course         *Course    `gorm:"foreignKey:CourseID"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// StatusOrEmpty returns the stored status, or "" when the column is NULL.
func (e Enrollment) StatusOrEmpty() string {
	if e.Status == nil {
		return ""
	}
	return *e.Status
}

// Certificate is an issued credential. Created outside this service.
type Certificate struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID  `gorm:"type:uuid;index"`
	CourseID       *uuid.UUID `gorm:"type:uuid"`
	CredentialID   *string
	IssuedOn       *time.Time
	BadgeURL       *string
	CertificateURL *string
	Hours          *float64
	Grade          *string
	Course         *Course `gorm:"foreignKey:CourseID"`
}

func (Certificate) TableName() string {
	return "certificates"
}
