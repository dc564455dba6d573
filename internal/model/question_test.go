package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestQuestionMarshalHidesAnswerFields(t *testing.T) {
	q := Question{
		TryoutID:     1,
		Subtes:       "pu",
		QuestionType: SingleChoice,
		Prompt:       "2 + 2 = ?",
		Options:      json.RawMessage(`["3","4","5"]`),
		AnswerKey:    json.RawMessage(`1`),
		Explanation:  "basic addition",
		Weight:       2,
	}

	out, err := json.Marshal(q)
	if err != nil {
		t.Fatal(err)
	}
	body := string(out)
	for _, leak := range []string{"answerKey", "explanation", "basic addition"} {
		if strings.Contains(body, leak) {
			t.Errorf("serialized question exposes %q: %s", leak, body)
		}
	}
	if !strings.Contains(body, `"prompt"`) || !strings.Contains(body, `"options"`) {
		t.Errorf("serialized question lost participant fields: %s", body)
	}
}

func TestQuestionPointWeight(t *testing.T) {
	if got := (&Question{Weight: 3}).PointWeight(); got != 3 {
		t.Errorf("weight 3 = %d", got)
	}
	if got := (&Question{}).PointWeight(); got != DefaultQuestionWeight {
		t.Errorf("zero weight = %d, want default %d", got, DefaultQuestionWeight)
	}
}

func TestQuestionOptionCount(t *testing.T) {
	tests := []struct {
		name    string
		options json.RawMessage
		want    int
	}{
		{"four options", json.RawMessage(`["a","b","c","d"]`), 4},
		{"absent", nil, 0},
		{"malformed", json.RawMessage(`{"a":1}`), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Question{Options: tt.options}
			if got := q.OptionCount(); got != tt.want {
				t.Errorf("OptionCount() = %d, want %d", got, tt.want)
			}
		})
	}
}
