package services

import (
	"math"
	"time"

	"lms/backend/models"
)

// Minutes of course multiplied by percent progress, to hours.
const learningHoursDivisor = 6000

// Each access on a day counts as one 30 minute session.
const focusHoursPerAccess = 0.5

// LearningHours is the progress-weighted length of all enrolled courses in
// hours, rounded to one decimal place.
func LearningHours(enrollments []models.Enrollment) float64 {
	var total float64
	for _, e := range enrollments {
		total += float64(courseDuration(e.Course)) * floatOr(e.Progress, 0) / learningHoursDivisor
	}
	return round1(total)
}

// Streak counts consecutive calendar days, ending today, with at least one
// course access. Days are evaluated in now's location.
func Streak(enrollments []models.Enrollment, now time.Time) int {
	days := accessDays(enrollments, now.Location())

	streak := 0
	for days[dayKey(calendarDay(now, -streak))] {
		streak++
	}
	return streak
}

// WeeklyFocus estimates study hours for each of the last 7 days ending today.
// Index 0 is Monday, 6 is Sunday.
func WeeklyFocus(enrollments []models.Enrollment, now time.Time) [7]float64 {
	var focus [7]float64

	perDay := make(map[string]int)
	for _, e := range enrollments {
		if e.LastAccessedAt == nil {
			continue
		}
		perDay[dayKey(e.LastAccessedAt.In(now.Location()))]++
	}

	for back := 6; back >= 0; back-- {
		day := calendarDay(now, -back)
		focus[weekdayIndex(day.Weekday())] += float64(perDay[dayKey(day)]) * focusHoursPerAccess
	}
	return focus
}

func accessDays(enrollments []models.Enrollment, loc *time.Location) map[string]bool {
	days := make(map[string]bool)
	for _, e := range enrollments {
		if e.LastAccessedAt != nil {
			days[dayKey(e.LastAccessedAt.In(loc))] = true
		}
	}
	return days
}

// calendarDay returns noon of the day offset days from t, so DST shifts never
// move it across a date boundary.
func calendarDay(t time.Time, offset int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+offset, 12, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
