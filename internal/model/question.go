package model

import "encoding/json"

type QuestionType string

const (
	SingleChoice  QuestionType = "single_choice"
	MultiChoice   QuestionType = "multi_choice"
	FreeText      QuestionType = "free_text"
	StatementGrid QuestionType = "statement_grid"
)

const DefaultQuestionWeight = 2

// swagger:model Question
type Question struct {
	BaseModel
	TryoutID uint   `gorm:"index;type:bigint unsigned" json:"tryoutId"`
	Subtes   string `gorm:"index;size:50;not null" json:"subtes"`
	Number   int    `gorm:"default:0" json:"number"`

	QuestionType QuestionType `gorm:"size:50;not null" json:"questionType"`
	Prompt       string       `gorm:"type:text;not null" json:"prompt"`
	// Shared reading passage; questions with the same PassageGroup render one
	// passage for the whole group.
	Passage      string `gorm:"type:text" json:"passage,omitempty"`
	PassageGroup string `gorm:"size:64;index" json:"passageGroup,omitempty"`

	Options json.RawMessage `gorm:"type:json" json:"options,omitempty"` // []string
	// Canonical answer, shape dictated by QuestionType: option index,
	// index set, string, or parallel boolean array.
	// Both stay out of the wire view served mid-exam; review exposes the
	// explanation through its own item type.
	AnswerKey   json.RawMessage `gorm:"type:json" json:"-"`
	Explanation string          `gorm:"type:text" json:"-"`
	Difficulty  string          `gorm:"size:10;default:'medium'" json:"difficulty"`
	Weight      int             `gorm:"default:2" json:"weight"`
}

func (Question) TableName() string {
	return "questions"
}

// PointWeight is the raw-score contribution of this question when correct.
func (q *Question) PointWeight() int {
	if q.Weight <= 0 {
		return DefaultQuestionWeight
	}
	return q.Weight
}

// OptionCount decodes the option list length, 0 when absent or malformed.
func (q *Question) OptionCount() int {
	if len(q.Options) == 0 {
		return 0
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return 0
	}
	return len(opts)
}
