package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Profile is the per-user row created by the identity provider's signup trigger
// (or by our signup upsert). Users may only change names and avatar.
type Profile struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	FirstName    *string
	LastName     *string
	Email        *string
	AvatarURL    *string
	Role         *string
	Organization *string
	XP           *int64                      `gorm:"column:xp"`
	Badges       datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt    *time.Time                  `gorm:"autoCreateTime:false"`
}

func (Profile) TableName() string {
	return "profiles"
}

// ProfileUpdate carries the user-editable subset of a profile. A nil field is
// left untouched; ClearAvatar writes NULL to avatar_url.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	AvatarURL   *string
	ClearAvatar bool
}

// Empty reports whether the update would write nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.AvatarURL == nil && !u.ClearAvatar
}
