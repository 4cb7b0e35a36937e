package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lms/backend/models"
)

// MemoryStore keeps rows in process memory. It mirrors GormStore ordering and
// is used for tests and local development without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	profiles     map[uuid.UUID]models.Profile
	courses      map[uuid.UUID]models.Course
	enrollments  []models.Enrollment
	certificates []models.Certificate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[uuid.UUID]models.Profile),
		courses:  make(map[uuid.UUID]models.Course),
	}
}

func (s *MemoryStore) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *MemoryStore) PutCourse(c models.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

// AddEnrollment stores e. Its Course field is ignored; the course is resolved
// through CourseID on read.
func (s *MemoryStore) AddEnrollment(e models.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Course = nil
	s.enrollments = append(s.enrollments, e)
}

func (s *MemoryStore) AddCertificate(c models.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Course = nil
	s.certificates = append(s.certificates, c)
}

func (s *MemoryStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) FindProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (s *MemoryStore) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Enrollment
	for _, e := range s.enrollments {
		if e.UserID != userID {
			continue
		}
		e.Course = s.course(e.CourseID)
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) ListEnrollmentsByRecentAccess(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	out, err := s.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i].LastAccessedAt, out[j].LastAccessedAt)
	})
	return out, nil
}

func (s *MemoryStore) ListCertificates(ctx context.Context, userID uuid.UUID, limit int) ([]models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Certificate
	for _, c := range s.certificates {
		if c.UserID != userID {
			continue
		}
		c.Course = s.course(c.CourseID)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newerFirst(out[i].IssuedOn, out[j].IssuedOn)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpsertProfileName(ctx context.Context, userID uuid.UUID, firstName, lastName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = models.Profile{ID: userID}
	}
	p.FirstName = &firstName
	p.LastName = &lastName
	s.profiles[userID] = p
	return nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.FirstName != nil {
		v := *upd.FirstName
		p.FirstName = &v
	}
	if upd.LastName != nil {
		v := *upd.LastName
		p.LastName = &v
	}
	switch {
	case upd.ClearAvatar:
		p.AvatarURL = nil
	case upd.AvatarURL != nil:
		v := *upd.AvatarURL
		p.AvatarURL = &v
	}
	s.profiles[userID] = p
	return &p, nil
}

func (s *MemoryStore) course(id *uuid.UUID) *models.Course {
	if id == nil {
		return nil
	}
	c, ok := s.courses[*id]
	if !ok {
		return nil
	}
	return &c
}

// newerFirst orders descending with NULLs first, as Postgres does for DESC.
func newerFirst(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.After(*b)
	}
}
