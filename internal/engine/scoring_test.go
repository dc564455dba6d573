package engine

import (
	"encoding/json"
	"math/rand"
	"testing"

	"tryout_backend/internal/model"
)

func q(id uint, typ model.QuestionType, key interface{}, weight int) model.Question {
	raw, _ := json.Marshal(key)
	question := model.Question{
		Subtes:       "pu",
		QuestionType: typ,
		AnswerKey:    raw,
		Weight:       weight,
	}
	question.ID = id
	return question
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestEvaluateSingleChoice(t *testing.T) {
	question := q(1, model.SingleChoice, 2, 2)

	tests := []struct {
		name string
		raw  json.RawMessage
		want Evaluation
	}{
		{"correct index", json.RawMessage(`2`), Evaluation{Answered: true, Correct: true}},
		{"wrong index", json.RawMessage(`1`), Evaluation{Answered: true}},
		{"unanswered", nil, Evaluation{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(&question, tt.raw)
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluateMultiChoice(t *testing.T) {
	question := q(2, model.MultiChoice, []int{0, 2}, 2)

	tests := []struct {
		name string
		raw  json.RawMessage
		want Evaluation
	}{
		{"exact set", json.RawMessage(`[0,2]`), Evaluation{Answered: true, Correct: true}},
		{"order independent", json.RawMessage(`[2,0]`), Evaluation{Answered: true, Correct: true}},
		{"subset is wrong", json.RawMessage(`[0]`), Evaluation{Answered: true}},
		{"superset is wrong", json.RawMessage(`[0,1,2]`), Evaluation{Answered: true}},
		{"empty set is unanswered", json.RawMessage(`[]`), Evaluation{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(&question, tt.raw)
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluateFreeText(t *testing.T) {
	question := q(3, model.FreeText, "Surabaya", 2)

	tests := []struct {
		name string
		raw  json.RawMessage
		want Evaluation
	}{
		{"exact", json.RawMessage(`"Surabaya"`), Evaluation{Answered: true, Correct: true}},
		{"case insensitive", json.RawMessage(`"surabaya"`), Evaluation{Answered: true, Correct: true}},
		{"surrounding whitespace", json.RawMessage(`"  Surabaya "`), Evaluation{Answered: true, Correct: true}},
		{"wrong text", json.RawMessage(`"Semarang"`), Evaluation{Answered: true}},
		{"blank is unanswered", json.RawMessage(`"   "`), Evaluation{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(&question, tt.raw)
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluateStatementGrid(t *testing.T) {
	question := q(4, model.StatementGrid, []bool{true, false, true}, 3)

	tests := []struct {
		name string
		raw  json.RawMessage
		want Evaluation
	}{
		{"all cells right", json.RawMessage(`[true,false,true]`), Evaluation{Answered: true, Correct: true}},
		{"one cell wrong", json.RawMessage(`[true,true,true]`), Evaluation{Answered: true}},
		{"partial grid", json.RawMessage(`[true,null,true]`), Evaluation{Answered: true}},
		{"short grid", json.RawMessage(`[true]`), Evaluation{Answered: true}},
		{"all unset is unanswered", json.RawMessage(`[null,null,null]`), Evaluation{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(&question, tt.raw)
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	if got := Normalize(0, 0, rng); got != 0 {
		t.Errorf("empty section: got %v, want 0", got)
	}
	for i := 0; i < 200; i++ {
		if got := Normalize(10, 10, rng); got != ScoreCeiling {
			t.Fatalf("perfect score: got %v, want exactly %v", got, ScoreCeiling)
		}
		// the floor clamps below, jitter may still add up to 3 on top
		if got := Normalize(0, 10, rng); got < ScoreFloor || got > ScoreFloor+3 {
			t.Fatalf("zero score outside [200, 203]: got %v", got)
		}
	}
}

func TestNormalizeJitterWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		got := Normalize(1, 2, rng)
		if got < 597 || got > 603 {
			t.Fatalf("half score outside jitter window: %v", got)
		}
	}
}

func TestNormalizeWithoutRNG(t *testing.T) {
	if got := Normalize(1, 2, nil); got != 600 {
		t.Errorf("nil rng: got %v, want 600", got)
	}
}

func TestScoreSectionAllCorrect(t *testing.T) {
	questions := []model.Question{
		q(1, model.SingleChoice, 1, 2),
		q(2, model.FreeText, "benar", 2),
	}
	store := NewAnswerStore()
	if err := store.Set(&questions[0], rawJSON(t, 1), false); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(&questions[1], rawJSON(t, "benar"), false); err != nil {
		t.Fatal(err)
	}

	res := ScoreSection("pu", questions, store, rand.New(rand.NewSource(1)))
	if res.Correct != 2 || res.Incorrect != 0 || res.Total != 2 {
		t.Errorf("counts = %d/%d/%d, want 2/0/2", res.Correct, res.Incorrect, res.Total)
	}
	if res.RawScore != 4 || res.MaxScore != 4 {
		t.Errorf("raw/max = %d/%d, want 4/4", res.RawScore, res.MaxScore)
	}
	if res.Score != ScoreCeiling {
		t.Errorf("score = %v, want %v", res.Score, ScoreCeiling)
	}
}

func TestScoreSectionAllWrong(t *testing.T) {
	questions := []model.Question{q(1, model.StatementGrid, []bool{true, false}, 3)}
	store := NewAnswerStore()
	if err := store.Set(&questions[0], rawJSON(t, []bool{false, true}), false); err != nil {
		t.Fatal(err)
	}

	res := ScoreSection("pm", questions, store, rand.New(rand.NewSource(1)))
	if res.Correct != 0 || res.Incorrect != 1 {
		t.Errorf("counts = %d/%d, want 0/1", res.Correct, res.Incorrect)
	}
	if res.RawScore != 0 || res.MaxScore != 3 {
		t.Errorf("raw/max = %d/%d, want 0/3", res.RawScore, res.MaxScore)
	}
	if res.Score < ScoreFloor || res.Score > ScoreFloor+3 {
		t.Errorf("score = %v, want within [200, 203]", res.Score)
	}
}

func TestScoreSectionUnansweredCountsIncorrect(t *testing.T) {
	questions := []model.Question{
		q(1, model.SingleChoice, 0, 2),
		q(2, model.SingleChoice, 0, 2),
	}
	store := NewAnswerStore()
	if err := store.Set(&questions[0], rawJSON(t, 0), false); err != nil {
		t.Fatal(err)
	}

	res := ScoreSection("pu", questions, store, nil)
	if res.Correct != 1 || res.Incorrect != 1 {
		t.Errorf("counts = %d/%d, want 1/1", res.Correct, res.Incorrect)
	}
	if res.Score != 600 {
		t.Errorf("score = %v, want 600", res.Score)
	}
}

func TestScoreSectionDeterministicWithFixedSeed(t *testing.T) {
	questions := []model.Question{
		q(1, model.SingleChoice, 1, 2),
		q(2, model.SingleChoice, 1, 2),
		q(3, model.SingleChoice, 1, 2),
	}
	store := NewAnswerStore()
	if err := store.Set(&questions[0], rawJSON(t, 1), false); err != nil {
		t.Fatal(err)
	}

	a := ScoreSection("pu", questions, store, rand.New(rand.NewSource(42)))
	b := ScoreSection("pu", questions, store, rand.New(rand.NewSource(42)))
	if a != b {
		t.Errorf("same seed produced different results: %+v vs %+v", a, b)
	}
}

func TestAggregateScore(t *testing.T) {
	results := map[string]model.SectionResult{
		"pu":  {Score: 700},
		"ppu": {Score: 800.5},
	}
	if got := AggregateScore(results); got != 750.25 {
		t.Errorf("AggregateScore() = %v, want 750.25", got)
	}
	if got := AggregateScore(nil); got != 0 {
		t.Errorf("AggregateScore(nil) = %v, want 0", got)
	}
}
