// Package rules implements the admission rule set. Every rule is a pure
// function of the candidate, the field and the current time.
package rules

import (
	"math"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

const epsilon = 1e-9

// Candidate is a proposed booking not yet admitted.
type Candidate struct {
	Date         time.Time
	StartTime    float64
	EndTime      float64
	Participants int
}

// CandidateFrom builds a candidate from a booking's proposed values.
func CandidateFrom(b *models.Booking) Candidate {
	return Candidate{Date: b.Date, StartTime: b.StartTime, EndTime: b.EndTime, Participants: b.Participants}
}

// Rule rejects a candidate with a *domain.RejectionError or returns nil.
type Rule struct {
	Name  string
	Check func(c Candidate, field *models.Field, now time.Time) error
}

// Settings parameterizes the configurable rules.
type Settings struct {
	MinLeadTime time.Duration
	MinDuration float64
	MaxDuration float64
	Granularity float64
}

// DefaultSettings mirrors the business defaults: 2h lead time, 1-4h in half hours.
func DefaultSettings() Settings {
	return Settings{MinLeadTime: 2 * time.Hour, MinDuration: 1, MaxDuration: 4, Granularity: 0.5}
}

// Pipeline runs its rules in order and stops at the first rejection.
type Pipeline struct {
	rules []Rule
}

// NewPipeline returns the standard ordered rule set.
func NewPipeline(s Settings) *Pipeline {
	def := DefaultSettings()
	if s.MinDuration <= 0 {
		s.MinDuration = def.MinDuration
	}
	if s.MaxDuration <= 0 {
		s.MaxDuration = def.MaxDuration
	}
	if s.Granularity <= 0 {
		s.Granularity = def.Granularity
	}
	if s.MinLeadTime < 0 {
		s.MinLeadTime = 0
	}

	return &Pipeline{rules: []Rule{
		{Name: "not_in_past", Check: NotInPast},
		{Name: "min_lead_time", Check: MinLeadTime(s.MinLeadTime)},
		{Name: "time_range", Check: TimeRange},
		{Name: "duration", Check: Duration(s.MinDuration, s.MaxDuration, s.Granularity)},
		{Name: "weekday", Check: WeekdayOpen},
		{Name: "operating_hours", Check: OperatingHours},
		{Name: "capacity", Check: Capacity},
	}}
}

// Rules returns a copy of the configured rules.
func (p *Pipeline) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

// Evaluate runs all rules; admission is all-or-nothing.
func (p *Pipeline) Evaluate(c Candidate, field *models.Field, now time.Time) error {
	for _, r := range p.rules {
		if err := r.Check(c, field, now); err != nil {
			return err
		}
	}
	return nil
}

// NotInPast rejects a slot whose start instant is already behind now.
func NotInPast(c Candidate, _ *models.Field, now time.Time) error {
	start := models.SlotInstant(c.Date, c.StartTime)
	if start.Before(now) {
		return domain.Reject(domain.ReasonPastDatetime,
			"booking at %s is in the past (now %s)", start.Format("2006-01-02 15:04"), now.Format("2006-01-02 15:04"))
	}
	return nil
}

// MinLeadTime rejects a slot that starts sooner than lead from now.
func MinLeadTime(lead time.Duration) func(Candidate, *models.Field, time.Time) error {
	return func(c Candidate, _ *models.Field, now time.Time) error {
		start := models.SlotInstant(c.Date, c.StartTime)
		if start.Before(now.Add(lead)) {
			return domain.Reject(domain.ReasonInsufficientLeadTime,
				"bookings must be made at least %s in advance", lead)
		}
		return nil
	}
}

// TimeRange requires 0 <= start < 24, 0 < end <= 24 and end after start.
func TimeRange(c Candidate, _ *models.Field, _ time.Time) error {
	if c.StartTime < 0 || c.StartTime >= 24 {
		return domain.Reject(domain.ReasonInvalidTimeRange, "start time must be between 00:00 and 23:59")
	}
	if c.EndTime <= 0 || c.EndTime > 24 {
		return domain.Reject(domain.ReasonInvalidTimeRange, "end time must be between 00:01 and 24:00")
	}
	if c.EndTime <= c.StartTime {
		return domain.Reject(domain.ReasonInvalidTimeRange, "end time must be after start time")
	}
	return nil
}

// Duration checks granularity first, then the [min, max] bounds.
func Duration(minHours, maxHours, step float64) func(Candidate, *models.Field, time.Time) error {
	return func(c Candidate, _ *models.Field, _ time.Time) error {
		d := c.EndTime - c.StartTime
		units := d / step
		if math.Abs(units-math.Round(units)) > epsilon {
			return domain.Reject(domain.ReasonDurationNotHalfHour,
				"bookings must be in blocks of %s", models.FormatHour(step))
		}
		if d < minHours-epsilon || d > maxHours+epsilon {
			return domain.Reject(domain.ReasonDurationOutOfBounds,
				"duration must be between %g and %g hours, got %g", minHours, maxHours, d)
		}
		return nil
	}
}

// WeekdayOpen rejects a date on which the field is closed.
func WeekdayOpen(c Candidate, field *models.Field, _ time.Time) error {
	wd := models.Weekday(c.Date)
	if !field.IsOpenOn(wd) {
		return domain.Reject(domain.ReasonResourceClosedWeekday,
			"field %s is closed on %s", field.Name, c.Date.Weekday())
	}
	return nil
}

// OperatingHours requires the slot to fit inside the field's opening hours.
func OperatingHours(c Candidate, field *models.Field, _ time.Time) error {
	opening, closing := field.OperatingWindow()
	if c.StartTime < opening {
		return domain.Reject(domain.ReasonOutsideOperatingHours,
			"field %s opens at %s", field.Name, models.FormatHour(opening))
	}
	if c.EndTime > closing {
		return domain.Reject(domain.ReasonOutsideOperatingHours,
			"field %s closes at %s", field.Name, models.FormatHour(closing))
	}
	return nil
}

// Capacity requires between 1 and field.Capacity participants.
func Capacity(c Candidate, field *models.Field, _ time.Time) error {
	if c.Participants < 1 {
		return domain.Reject(domain.ReasonEmptyParticipants, "at least 1 participant is required")
	}
	if c.Participants > field.Capacity {
		return domain.Reject(domain.ReasonCapacityExceeded,
			"field %s holds at most %d players, got %d", field.Name, field.Capacity, c.Participants)
	}
	return nil
}
