package model

import (
	"encoding/json"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// SectionResult is produced exactly once, at the moment its section ends, and
// never recomputed afterward.
// swagger:model SectionResult
type SectionResult struct {
	Subtes    string  `json:"subtes"`
	Correct   int     `json:"benar"`
	Incorrect int     `json:"salah"`
	Total     int     `json:"total"`
	RawScore  int     `json:"skorMentah"`
	MaxScore  int     `json:"skorMaksimal"`
	Score     float64 `json:"skorAkhir"` // normalized, 200-1000 scale
}

// Attempt is one participant's single run through a tryout. One row exists per
// (user, tryout) pair; it is mutated in place until completion and read-only
// afterward.
// swagger:model Attempt
type Attempt struct {
	BaseModel
	TryoutID uint `gorm:"index:idx_attempt_user_tryout,unique;type:bigint unsigned" json:"tryoutId"`
	UserID   uint `gorm:"index:idx_attempt_user_tryout,unique;type:bigint unsigned" json:"userId"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	CurrentSubtes    string `gorm:"size:50" json:"currentSubtes"`
	RemainingSeconds int    `gorm:"default:0" json:"remainingSeconds"`

	Answers        json.RawMessage `gorm:"type:json" json:"answers,omitempty"`        // map[questionID]raw value
	Flagged        json.RawMessage `gorm:"type:json" json:"flagged,omitempty"`        // []questionID
	SectionResults json.RawMessage `gorm:"type:json" json:"sectionResults,omitempty"` // map[subtes]SectionResult

	TotalScore float64       `json:"totalScore"`
	Status     AttemptStatus `gorm:"size:20;default:'in_progress';index" json:"status"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a *Attempt) Completed() bool {
	return a.Status == AttemptCompleted
}

// AnswerMap decodes the persisted answer store. A nil column yields an empty map.
func (a *Attempt) AnswerMap() (map[uint]json.RawMessage, error) {
	out := make(map[uint]json.RawMessage)
	if len(a.Answers) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(a.Answers, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FlaggedIDs decodes the persisted flagged-question set.
func (a *Attempt) FlaggedIDs() ([]uint, error) {
	if len(a.Flagged) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := json.Unmarshal(a.Flagged, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ResultMap decodes the per-section result map.
func (a *Attempt) ResultMap() (map[string]SectionResult, error) {
	out := make(map[string]SectionResult)
	if len(a.SectionResults) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(a.SectionResults, &out); err != nil {
		return nil, err
	}
	return out, nil
}
