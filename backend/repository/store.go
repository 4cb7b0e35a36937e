// Package repository reads and writes the learner's rows in the BaaS database.
// Every method is scoped to a single user id.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"lms/backend/models"
)

// ErrNotFound is returned when a row that must exist does not.
var ErrNotFound = errors.New("record not found")

type Store interface {
	// GetProfile returns ErrNotFound when the user has no profile row.
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	// FindProfile is GetProfile with a missing row reported as (nil, nil).
	FindProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	// ListEnrollments returns all enrollments with their course, in storage order.
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)
	// ListEnrollmentsByRecentAccess orders by last_accessed_at descending, never-accessed first.
	ListEnrollmentsByRecentAccess(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)
	// ListCertificates returns certificates newest issued_on first. limit <= 0 means all.
	ListCertificates(ctx context.Context, userID uuid.UUID, limit int) ([]models.Certificate, error)
	UpsertProfileName(ctx context.Context, userID uuid.UUID, firstName, lastName string) error
	// UpdateProfile applies upd and returns the stored row.
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error)
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
