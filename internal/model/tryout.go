package model

import "time"

// AccessMode controls how a tryout opens for participants. Manual modes
// override the scheduled window.
type AccessMode string

const (
	AccessScheduled    AccessMode = "scheduled"
	AccessManualOpened AccessMode = "manually-opened"
	AccessManualClosed AccessMode = "manually-closed"
)

// Availability is the effective state computed from the schedule and mode.
type Availability string

const (
	AvailabilityUpcoming Availability = "upcoming"
	AvailabilityOpen     Availability = "open"
	AvailabilityClosed   Availability = "closed"
)

// swagger:model Tryout
type Tryout struct {
	BaseModel
	Name        string     `gorm:"size:255;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	ReleaseAt   time.Time  `json:"releaseAt"`
	StartAt     time.Time  `json:"startAt"`
	EndAt       *time.Time `json:"endAt,omitempty"`
	IsActive    bool       `gorm:"default:true" json:"isActive"`
	// bcrypt hash; empty means no password required
	PasswordHash string     `gorm:"size:255" json:"-"`
	AccessMode   AccessMode `gorm:"size:20;default:'scheduled'" json:"accessMode"`

	Sections []TryoutSection `gorm:"foreignKey:TryoutID" json:"sections,omitempty"`
}

func (Tryout) TableName() string {
	return "tryouts"
}

// AvailabilityAt computes the effective availability at the given instant.
func (t *Tryout) AvailabilityAt(now time.Time) Availability {
	switch t.AccessMode {
	case AccessManualOpened:
		return AvailabilityOpen
	case AccessManualClosed:
		return AvailabilityClosed
	}
	if !t.IsActive || now.Before(t.StartAt) {
		return AvailabilityUpcoming
	}
	if t.EndAt != nil && now.After(*t.EndAt) {
		return AvailabilityClosed
	}
	return AvailabilityOpen
}

// Released reports whether the tryout may appear in participant listings.
func (t *Tryout) Released(now time.Time) bool {
	return !now.Before(t.ReleaseAt)
}

// HasPassword reports whether joining requires the access password.
func (t *Tryout) HasPassword() bool {
	return t.PasswordHash != ""
}

// TryoutSection is one timed subject block (subtes) of a tryout, with its own
// question list and countdown.
// swagger:model TryoutSection
type TryoutSection struct {
	BaseModel
	TryoutID        uint   `gorm:"index;type:bigint unsigned" json:"tryoutId"`
	Subtes          string `gorm:"size:50;not null" json:"subtes"`
	Name            string `gorm:"size:255" json:"name"`
	Order           int    `gorm:"default:0" json:"order"`
	DurationMinutes int    `gorm:"default:0" json:"durationMinutes"`
}

func (TryoutSection) TableName() string {
	return "tryout_sections"
}

// DurationSeconds is the section countdown length in whole seconds.
func (s *TryoutSection) DurationSeconds() int {
	return s.DurationMinutes * 60
}
