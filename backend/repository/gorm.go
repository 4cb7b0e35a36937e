package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lms/backend/models"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *GormStore) FindProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return profile, err
}

func (s *GormStore) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Find(&enrollments).Error
	return enrollments, err
}

func (s *GormStore) ListEnrollmentsByRecentAccess(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("last_accessed_at DESC NULLS FIRST").
		Find(&enrollments).Error
	return enrollments, err
}

func (s *GormStore) ListCertificates(ctx context.Context, userID uuid.UUID, limit int) ([]models.Certificate, error) {
	var certificates []models.Certificate
	q := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("issued_on DESC NULLS FIRST")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&certificates).Error
	return certificates, err
}

func (s *GormStore) UpsertProfileName(ctx context.Context, userID uuid.UUID, firstName, lastName string) error {
	profile := models.Profile{
		ID:        userID,
		FirstName: &firstName,
		LastName:  &lastName,
	}
	// Only the name columns are written; the rest keep their database defaults.
	return s.db.WithContext(ctx).
		Select("id", "first_name", "last_name").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name"}),
		}).
		Create(&profile).Error
}

func (s *GormStore) UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error) {
	updates := profileUpdates(upd)

	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Profile{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", userID).First(&profile).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func profileUpdates(upd models.ProfileUpdate) map[string]interface{} {
	updates := map[string]interface{}{}
	if upd.FirstName != nil {
		updates["first_name"] = *upd.FirstName
	}
	if upd.LastName != nil {
		updates["last_name"] = *upd.LastName
	}
	switch {
	case upd.ClearAvatar:
		updates["avatar_url"] = nil
	case upd.AvatarURL != nil:
		updates["avatar_url"] = *upd.AvatarURL
	}
	return updates
}
