package service

import (
	"encoding/json"

	"tryout_backend/internal/engine"
	"tryout_backend/internal/model"
	"tryout_backend/internal/util"
)

// ReviewService computes the post-completion review: per-question verdicts
// recomputed with the same correctness predicate the scoring engine used, so
// the review can never disagree with the stored section results.
type ReviewService struct {
	Tryouts   TryoutStore
	Questions QuestionStore
	Attempts  AttemptStore
}

func NewReviewService(tryouts TryoutStore, questions QuestionStore, attempts AttemptStore) *ReviewService {
	return &ReviewService{Tryouts: tryouts, Questions: questions, Attempts: attempts}
}

// ReviewItem pairs one question with the participant's answer, its verdict and
// the canonical answer/explanation for display.
type ReviewItem struct {
	QuestionID   uint               `json:"questionId"`
	Number       int                `json:"number"`
	QuestionType model.QuestionType `json:"questionType"`
	Prompt       string             `json:"prompt"`
	Passage      string             `json:"passage,omitempty"`
	PassageGroup string             `json:"passageGroup,omitempty"`
	Options      json.RawMessage    `json:"options,omitempty"`
	UserAnswer   json.RawMessage    `json:"userAnswer,omitempty"`
	AnswerKey    json.RawMessage    `json:"answerKey"`
	Explanation  string             `json:"explanation,omitempty"`
	Answered     bool               `json:"answered"`
	Correct      bool               `json:"correct"`
	Flagged      bool               `json:"flagged"`
}

// ReviewSection is one section's review block.
type ReviewSection struct {
	Subtes string               `json:"subtes"`
	Name   string               `json:"name"`
	Result *model.SectionResult `json:"result,omitempty"`
	Items  []ReviewItem         `json:"items"`
}

// Review builds the full review for a completed attempt, section by section in
// the tryout's fixed ordering.
func (s *ReviewService) Review(userID, attemptID uint) ([]ReviewSection, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	if !attempt.Completed() {
		return nil, util.ErrAttemptNotFinished
	}

	tryout, err := s.Tryouts.FindByID(attempt.TryoutID)
	if err != nil {
		return nil, err
	}

	answers, err := attempt.AnswerMap()
	if err != nil {
		return nil, err
	}
	flaggedIDs, err := attempt.FlaggedIDs()
	if err != nil {
		return nil, err
	}
	flagged := make(map[uint]bool, len(flaggedIDs))
	for _, id := range flaggedIDs {
		flagged[id] = true
	}
	results, err := attempt.ResultMap()
	if err != nil {
		return nil, err
	}

	sections := make([]ReviewSection, 0, len(tryout.Sections))
	for _, sec := range tryout.Sections {
		questions, err := s.Questions.ListBySection(tryout.ID, sec.Subtes)
		if err != nil {
			return nil, err
		}

		block := ReviewSection{
			Subtes: sec.Subtes,
			Name:   sec.Name,
			Items:  make([]ReviewItem, 0, len(questions)),
		}
		if r, ok := results[sec.Subtes]; ok {
			res := r
			block.Result = &res
		}

		for i := range questions {
			q := &questions[i]
			raw := answers[q.ID]
			ev := engine.Evaluate(q, raw)
			block.Items = append(block.Items, ReviewItem{
				QuestionID:   q.ID,
				Number:       q.Number,
				QuestionType: q.QuestionType,
				Prompt:       q.Prompt,
				Passage:      q.Passage,
				PassageGroup: q.PassageGroup,
				Options:      q.Options,
				UserAnswer:   raw,
				AnswerKey:    q.AnswerKey,
				Explanation:  q.Explanation,
				Answered:     ev.Answered,
				Correct:      ev.Correct,
				Flagged:      flagged[q.ID],
			})
		}
		sections = append(sections, block)
	}
	return sections, nil
}
