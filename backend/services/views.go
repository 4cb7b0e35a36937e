package services

import (
	"time"

	"github.com/google/uuid"

	"lms/backend/models"
)

// Values shown when a column is NULL or empty.
const (
	DefaultCourseTitle       = "Untitled course"
	DefaultCategory          = "General"
	DefaultCourseLevel       = "Beginner"
	DefaultRecommendedLevel  = "Intermediate"
	DefaultLastLesson        = "Introduction"
	DefaultEnrollmentStatus  = models.StatusInProgress
	DefaultInstructor        = "TechZone Mentor"
	DefaultRating            = 4.8
	DefaultCertificateTitle  = "Course"
	DefaultCertificateLevel  = "Intermediate"
	DefaultOverviewFirstName = "Learner"
	DefaultRole              = "Student"
	DefaultOrganization      = "TechZone LMS"
)

type CourseItem struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	Level           string     `json:"level"`
	Status          string     `json:"status"`
	Progress        float64    `json:"progress"`
	DurationMinutes int        `json:"durationMinutes"`
	LessonsCount    int        `json:"lessonsCount"`
	Thumbnail       *string    `json:"thumbnail"`
	Instructor      string     `json:"instructor"`
	Rating          float64    `json:"rating"`
	LastAccessedAt  *time.Time `json:"lastAccessedAt"`
	CompletionETA   *time.Time `json:"completionEta"`
}

type CertificateCourse struct {
	ID       *uuid.UUID `json:"id"`
	Title    string     `json:"title"`
	Level    string     `json:"level"`
	Category string     `json:"category"`
}

type CertificateItem struct {
	ID             uuid.UUID         `json:"id"`
	CredentialID   *string           `json:"credentialId"`
	IssuedOn       *time.Time        `json:"issuedOn"`
	BadgeURL       *string           `json:"badgeUrl"`
	CertificateURL *string           `json:"certificateUrl"`
	Hours          *float64          `json:"hours"`
	Grade          *string           `json:"grade"`
	Course         CertificateCourse `json:"course"`
}

type ProfileView struct {
	ID           uuid.UUID  `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Email        string     `json:"email"`
	AvatarURL    *string    `json:"avatarUrl"`
	Role         string     `json:"role"`
	Organization string     `json:"organization"`
	XP           int64      `json:"xp"`
	Badges       []string   `json:"badges"`
	CreatedAt    *time.Time `json:"createdAt"`
}

// UpdatedProfile is returned after a profile edit.
type UpdatedProfile struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	AvatarURL    *string   `json:"avatarUrl"`
	Role         string    `json:"role"`
	Organization string    `json:"organization"`
}

// FormatCourses maps enrollments to the course list, keeping their order.
func FormatCourses(enrollments []models.Enrollment) []CourseItem {
	items := make([]CourseItem, 0, len(enrollments))
	for _, e := range enrollments {
		c := e.Course
		if c == nil {
			c = &models.Course{}
		}
		items = append(items, CourseItem{
			ID:              courseOrEnrollmentID(e),
			Title:           stringOr(c.Title, DefaultCourseTitle),
			Category:        stringOr(c.Category, DefaultCategory),
			Level:           stringOr(c.Level, DefaultCourseLevel),
			Status:          stringOr(e.Status, DefaultEnrollmentStatus),
			Progress:        floatOr(e.Progress, 0),
			DurationMinutes: intOr(c.DurationMinutes, 0),
			LessonsCount:    intOr(c.LessonsCount, 0),
			Thumbnail:       nullable(c.ThumbnailURL),
			Instructor:      stringOr(c.Instructor, DefaultInstructor),
			Rating:          floatOr(c.Rating, DefaultRating),
			LastAccessedAt:  e.LastAccessedAt,
			CompletionETA:   e.CompletionETA,
		})
	}
	return items
}

func FormatCertificates(certificates []models.Certificate) []CertificateItem {
	items := make([]CertificateItem, 0, len(certificates))
	for _, cert := range certificates {
		course := CertificateCourse{
			Title:    DefaultCertificateTitle,
			Level:    DefaultCertificateLevel,
			Category: DefaultCategory,
		}
		if c := cert.Course; c != nil {
			id := c.ID
			course.ID = &id
			course.Title = stringOr(c.Title, DefaultCertificateTitle)
			course.Level = stringOr(c.Level, DefaultCertificateLevel)
			course.Category = stringOr(c.Category, DefaultCategory)
		}
		items = append(items, CertificateItem{
			ID:             cert.ID,
			CredentialID:   cert.CredentialID,
			IssuedOn:       cert.IssuedOn,
			BadgeURL:       cert.BadgeURL,
			CertificateURL: cert.CertificateURL,
			Hours:          cert.Hours,
			Grade:          cert.Grade,
			Course:         course,
		})
	}
	return items
}

// FormatProfile renders a stored profile. fallbackEmail is used when the row
// carries no email, typically the identity provider's address for the user.
func FormatProfile(userID uuid.UUID, p *models.Profile, fallbackEmail string) ProfileView {
	if p == nil {
		p = &models.Profile{}
	}
	return ProfileView{
		ID:           idOr(p.ID, userID),
		FirstName:    stringOr(p.FirstName, ""),
		LastName:     stringOr(p.LastName, ""),
		Email:        stringOr(p.Email, fallbackEmail),
		AvatarURL:    nullable(p.AvatarURL),
		Role:         stringOr(p.Role, DefaultRole),
		Organization: stringOr(p.Organization, DefaultOrganization),
		XP:           int64Or(p.XP, 0),
		Badges:       badges(p.Badges),
		CreatedAt:    p.CreatedAt,
	}
}

func FormatUpdatedProfile(userID uuid.UUID, p *models.Profile) UpdatedProfile {
	if p == nil {
		p = &models.Profile{}
	}
	return UpdatedProfile{
		ID:           idOr(p.ID, userID),
		FirstName:    stringOr(p.FirstName, ""),
		LastName:     stringOr(p.LastName, ""),
		AvatarURL:    nullable(p.AvatarURL),
		Role:         stringOr(p.Role, DefaultRole),
		Organization: stringOr(p.Organization, DefaultOrganization),
	}
}

func courseOrEnrollmentID(e models.Enrollment) uuid.UUID {
	if e.Course != nil && e.Course.ID != uuid.Nil {
		return e.Course.ID
	}
	return e.ID
}

func courseDuration(c *models.Course) int {
	if c == nil {
		return 0
	}
	return intOr(c.DurationMinutes, 0)
}

func badges(b []string) []string {
	if b == nil {
		return []string{}
	}
	return b
}

func idOr(id, def uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return def
	}
	return id
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// nullable turns empty strings into JSON null.
func nullable(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}

func int64Or(v *int64, def int64) int64 {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}
