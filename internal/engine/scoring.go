package engine

import (
	"encoding/json"
	"math"
	"math/rand"
	"strings"

	"tryout_backend/internal/model"
)

// Score scale bounds of the normalized section score.
const (
	ScoreFloor   = 200.0
	ScoreCeiling = 1000.0
	jitterRange  = 3.0 // uniform jitter in [-3, +3]
)

// Evaluation is the verdict for a single question. Unanswered questions are
// never correct; they count toward the denominator only.
type Evaluation struct {
	Answered bool
	Correct  bool
}

// Evaluate applies the per-type correctness predicate to a stored answer
// value. This is the single predicate shared by section scoring and the
// post-completion review, so the two can never diverge.
func Evaluate(q *model.Question, raw json.RawMessage) Evaluation {
	if len(raw) == 0 {
		return Evaluation{}
	}

	switch q.QuestionType {
	case model.SingleChoice:
		var got, want int
		if json.Unmarshal(raw, &got) != nil || json.Unmarshal(q.AnswerKey, &want) != nil {
			return Evaluation{Answered: true}
		}
		return Evaluation{Answered: true, Correct: got == want}

	case model.MultiChoice:
		var got, want []int
		if json.Unmarshal(raw, &got) != nil || json.Unmarshal(q.AnswerKey, &want) != nil {
			return Evaluation{Answered: len(raw) > 0}
		}
		if len(got) == 0 {
			return Evaluation{}
		}
		return Evaluation{Answered: true, Correct: sameIndexSet(got, want)}

	case model.FreeText:
		var got, want string
		if json.Unmarshal(raw, &got) != nil || json.Unmarshal(q.AnswerKey, &want) != nil {
			return Evaluation{Answered: true}
		}
		if strings.TrimSpace(got) == "" {
			return Evaluation{}
		}
		return Evaluation{Answered: true, Correct: normalizeText(got) == normalizeText(want)}

	case model.StatementGrid:
		var got []*bool
		var want []bool
		if json.Unmarshal(raw, &got) != nil || json.Unmarshal(q.AnswerKey, &want) != nil {
			return Evaluation{Answered: true}
		}
		answered := false
		for _, cell := range got {
			if cell != nil {
				answered = true
				break
			}
		}
		if !answered {
			return Evaluation{}
		}
		if len(got) != len(want) {
			return Evaluation{Answered: true}
		}
		for i, cell := range got {
			if cell == nil || *cell != want[i] {
				return Evaluation{Answered: true}
			}
		}
		return Evaluation{Answered: true, Correct: true}
	}

	return Evaluation{Answered: true}
}

// ScoreSection grades one section's ordered question list against the answer
// store and produces its SectionResult. Pure apart from the jitter drawn from
// rng; inject a fixed source for deterministic tests.
func ScoreSection(subtes string, questions []model.Question, store *AnswerStore, rng *rand.Rand) model.SectionResult {
	res := model.SectionResult{Subtes: subtes}

	for i := range questions {
		q := &questions[i]
		res.Total++
		res.MaxScore += q.PointWeight()

		ev := Evaluate(q, store.Get(q.ID))
		if ev.Correct {
			res.Correct++
			res.RawScore += q.PointWeight()
		} else {
			res.Incorrect++
		}
	}

	res.Score = Normalize(res.RawScore, res.MaxScore, rng)
	return res
}

// Normalize rescales a raw-score ratio onto the 200-1000 reporting scale with
// a small uniform jitter, clamped and rounded to 2 decimal places. An empty
// section (max = 0) scores exactly 0, and a perfect section reports the
// ceiling exactly; jitter never drags a full score down.
func Normalize(raw, max int, rng *rand.Rand) float64 {
	if max <= 0 {
		return 0
	}
	if raw >= max {
		return ScoreCeiling
	}
	percentage := float64(raw) / float64(max)
	score := ScoreFloor + percentage*(ScoreCeiling-ScoreFloor)
	if rng != nil {
		score += rng.Float64()*2*jitterRange - jitterRange
	}
	if score < ScoreFloor {
		score = ScoreFloor
	}
	if score > ScoreCeiling {
		score = ScoreCeiling
	}
	return math.Round(score*100) / 100
}

// AggregateScore is the attempt-level score: the arithmetic mean of each
// section's normalized score, rounded to 2 decimal places.
func AggregateScore(results map[string]model.SectionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Score
	}
	return math.Round(sum/float64(len(results))*100) / 100
}

func sameIndexSet(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[int]int, len(want))
	for _, v := range want {
		seen[v]++
	}
	for _, v := range got {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
