// Package services turns stored rows into the learner-facing view models.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lms/backend/models"
	"lms/backend/repository"
)

// OverviewCertificateLimit caps the certificates shown on the dashboard.
const OverviewCertificateLimit = 5

const maxActiveCourses = 3

var overviewFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dashboard_overview_failures_total",
		Help: "Dashboard overview builds aborted, by the read that failed",
	},
	[]string{"query"},
)

type Overview struct {
	Profile         OverviewProfile  `json:"profile"`
	Stats           OverviewStats    `json:"stats"`
	ActiveCourses   []ActiveCourse   `json:"activeCourses"`
	Certificates    []CertificateRow `json:"certificates"`
	Recommendations []Recommendation `json:"recommendations"`
}

type OverviewProfile struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	AvatarURL    *string   `json:"avatarUrl"`
	Role         string    `json:"role"`
	Organization string    `json:"organization"`
	XP           int64     `json:"xp"`
	Badges       []string  `json:"badges"`
}

type OverviewStats struct {
	EnrolledCourses    int        `json:"enrolledCourses"`
	CompletedCourses   int        `json:"completedCourses"`
	CertificatesEarned int        `json:"certificatesEarned"`
	LearningHours      float64    `json:"learningHours"`
	Streak             int        `json:"streak"`
	WeeklyFocus        [7]float64 `json:"weeklyFocus"`
}

type ActiveCourse struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Level      string    `json:"level"`
	Progress   float64   `json:"progress"`
	LastLesson string    `json:"lastLesson"`
	Thumbnail  *string   `json:"thumbnail"`
}

type Recommendation struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Level    string    `json:"level"`
	Category string    `json:"category"`
}

// CertificateRow is a certificate as stored, with column names kept as-is.
type CertificateRow struct {
	ID             uuid.UUID             `json:"id"`
	CredentialID   *string               `json:"credential_id"`
	IssuedOn       *time.Time            `json:"issued_on"`
	BadgeURL       *string               `json:"badge_url"`
	CertificateURL *string               `json:"certificate_url"`
	Hours          *float64              `json:"hours"`
	Courses        *CertificateCourseRef `json:"courses"`
}

type CertificateCourseRef struct {
	ID    uuid.UUID `json:"id"`
	Title *string   `json:"title"`
}

// OverviewService builds the learner dashboard from three concurrent reads.
type OverviewService struct {
	store  repository.Store
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewOverviewService evaluates day boundaries (streak, weekly focus) in loc.
func NewOverviewService(store repository.Store, logger *zap.Logger, loc *time.Location) *OverviewService {
	if loc == nil {
		loc = time.UTC
	}
	return &OverviewService{
		store:  store,
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// Build loads the user's rows and aggregates them. If any read fails the
// others are cancelled and no overview is returned.
func (s *OverviewService) Build(ctx context.Context, userID uuid.UUID) (*Overview, error) {
	var (
		profile      *models.Profile
		enrollments  []models.Enrollment
		certificates []models.Certificate
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.store.GetProfile(gctx, userID)
		if err != nil {
			return s.readFailed(gctx, "profiles", userID, err)
		}
		profile = p
		return nil
	})

	g.Go(func() error {
		rows, err := s.store.ListEnrollments(gctx, userID)
		if err != nil {
			return s.readFailed(gctx, "enrollments", userID, err)
		}
		enrollments = rows
		return nil
	})

	g.Go(func() error {
		rows, err := s.store.ListCertificates(gctx, userID, OverviewCertificateLimit)
		if err != nil {
			return s.readFailed(gctx, "certificates", userID, err)
		}
		certificates = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	overview := Aggregate(userID, profile, enrollments, certificates, s.now().In(s.loc))
	return &overview, nil
}

func (s *OverviewService) readFailed(ctx context.Context, query string, userID uuid.UUID, err error) error {
	// Reads cancelled because a sibling failed are not failures of their own.
	if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		overviewFailures.WithLabelValues(query).Inc()
		s.logger.Error("dashboard read failed",
			zap.String("query", query),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
	return fmt.Errorf("load %s: %w", query, err)
}

// Aggregate derives the dashboard from already loaded rows. Day-based
// statistics use now's location.
func Aggregate(userID uuid.UUID, profile *models.Profile, enrollments []models.Enrollment, certificates []models.Certificate, now time.Time) Overview {
	if len(certificates) > OverviewCertificateLimit {
		certificates = certificates[:OverviewCertificateLimit]
	}

	completed := 0
	active := make([]ActiveCourse, 0, maxActiveCourses)
	recommendations := make([]Recommendation, 0)

	for _, e := range enrollments {
		status := e.StatusOrEmpty()
		if status == models.StatusCompleted {
			completed++
		} else if len(active) < maxActiveCourses {
			active = append(active, activeCourse(e))
		}
		if status == models.StatusWishlist {
			recommendations = append(recommendations, recommendation(e))
		}
	}

	return Overview{
		Profile: overviewProfile(userID, profile),
		Stats: OverviewStats{
			EnrolledCourses:    len(enrollments),
			CompletedCourses:   completed,
			CertificatesEarned: len(certificates),
			LearningHours:      LearningHours(enrollments),
			Streak:             Streak(enrollments, now),
			WeeklyFocus:        WeeklyFocus(enrollments, now),
		},
		ActiveCourses:   active,
		Certificates:    certificateRows(certificates),
		Recommendations: recommendations,
	}
}

func overviewProfile(userID uuid.UUID, p *models.Profile) OverviewProfile {
	if p == nil {
		p = &models.Profile{}
	}
	return OverviewProfile{
		ID:           idOr(p.ID, userID),
		FirstName:    stringOr(p.FirstName, DefaultOverviewFirstName),
		LastName:     stringOr(p.LastName, ""),
		AvatarURL:    nullable(p.AvatarURL),
		Role:         stringOr(p.Role, DefaultRole),
		Organization: stringOr(p.Organization, DefaultOrganization),
		XP:           int64Or(p.XP, 0),
		Badges:       badges(p.Badges),
	}
}

func activeCourse(e models.Enrollment) ActiveCourse {
	c := e.Course
	if c == nil {
		c = &models.Course{}
	}
	return ActiveCourse{
		ID:         courseOrEnrollmentID(e),
		Title:      stringOr(c.Title, DefaultCourseTitle),
		Category:   stringOr(c.Category, DefaultCategory),
		Level:      stringOr(c.Level, DefaultCourseLevel),
		Progress:   floatOr(e.Progress, 0),
		LastLesson: stringOr(e.LastLesson, DefaultLastLesson),
		Thumbnail:  nullable(c.ThumbnailURL),
	}
}

func recommendation(e models.Enrollment) Recommendation {
	c := e.Course
	if c == nil {
		c = &models.Course{}
	}
	return Recommendation{
		ID:       courseOrEnrollmentID(e),
		Title:    stringOr(c.Title, DefaultCourseTitle),
		Level:    stringOr(c.Level, DefaultRecommendedLevel),
		Category: stringOr(c.Category, DefaultCategory),
	}
}

func certificateRows(certificates []models.Certificate) []CertificateRow {
	rows := make([]CertificateRow, 0, len(certificates))
	for _, c := range certificates {
		row := CertificateRow{
			ID:             c.ID,
			CredentialID:   c.CredentialID,
			IssuedOn:       c.IssuedOn,
			BadgeURL:       c.BadgeURL,
			CertificateURL: c.CertificateURL,
			Hours:          c.Hours,
		}
		if c.Course != nil {
			row.Courses = &CertificateCourseRef{ID: c.Course.ID, Title: c.Course.Title}
		}
		rows = append(rows, row)
	}
	return rows
}
