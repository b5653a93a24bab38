package models

import "time"

// Field is a bookable sports field. Code is its immutable identity.
type Field struct {
	Code        string    `yaml:"code" json:"code"`
	Name        string    `yaml:"name" json:"name"`
	SportType   string    `yaml:"sport_type" json:"sport_type"`
	SurfaceType string    `yaml:"surface_type" json:"surface_type"`
	Description string    `yaml:"description" json:"description,omitempty"`
	Capacity    int       `yaml:"capacity" json:"capacity"`
	HourlyRate  float64   `yaml:"hourly_rate" json:"hourly_rate"`
	OpeningTime float64   `yaml:"opening_time" json:"opening_time"`
	ClosingTime float64   `yaml:"closing_time" json:"closing_time"`
	Monday      bool      `yaml:"monday" json:"monday"`
	Tuesday     bool      `yaml:"tuesday" json:"tuesday"`
	Wednesday   bool      `yaml:"wednesday" json:"wednesday"`
	Thursday    bool      `yaml:"thursday" json:"thursday"`
	Friday      bool      `yaml:"friday" json:"friday"`
	Saturday    bool      `yaml:"saturday" json:"saturday"`
	Sunday      bool      `yaml:"sunday" json:"sunday"`
	IsActive    bool      `yaml:"is_active" json:"is_active"`
	CreatedAt   time.Time `yaml:"-" json:"created_at"`
	UpdatedAt   time.Time `yaml:"-" json:"updated_at"`
}

// NewField returns a field with the catalog defaults: open every day from
// DefaultOpeningTime to DefaultClosingTime, DefaultCapacity players, active.
func NewField(code string) *Field {
	f := &Field{
		Code:        code,
		Capacity:    DefaultCapacity,
		OpeningTime: DefaultOpeningTime,
		ClosingTime: DefaultClosingTime,
		IsActive:    true,
	}
	f.SetOpenDays([7]bool{true, true, true, true, true, true, true})
	return f
}

// UnmarshalYAML decodes a catalog entry over NewField, so omitted keys keep
// their defaults. Works with both yaml.v2 and yaml.v3.
func (f *Field) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain Field
	p := plain(*NewField(""))
	if err := unmarshal(&p); err != nil {
		return err
	}
	*f = Field(p)
	return nil
}

// OpenDays returns the weekday flags indexed 0=Monday..6=Sunday.
func (f *Field) OpenDays() [7]bool {
	return [7]bool{f.Monday, f.Tuesday, f.Wednesday, f.Thursday, f.Friday, f.Saturday, f.Sunday}
}

// SetOpenDays assigns the weekday flags from a Monday-first array.
func (f *Field) SetOpenDays(days [7]bool) {
	f.Monday, f.Tuesday, f.Wednesday, f.Thursday = days[0], days[1], days[2], days[3]
	f.Friday, f.Saturday, f.Sunday = days[4], days[5], days[6]
}

// IsOpenOn reports whether the field opens on weekday (0=Monday..6=Sunday).
func (f *Field) IsOpenOn(weekday int) bool {
	if weekday < 0 || weekday > 6 {
		return false
	}
	return f.OpenDays()[weekday]
}

// OperatingWindow returns opening and closing time as fractional hours.
func (f *Field) OperatingWindow() (float64, float64) {
	return f.OpeningTime, f.ClosingTime
}
