package engine

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"tryout_backend/internal/model"
	"tryout_backend/internal/util"
)

func TestSetSingleChoice(t *testing.T) {
	question := q(1, model.SingleChoice, 0, 2)
	store := NewAnswerStore()

	if err := store.Set(&question, json.RawMessage(`2`), false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := string(store.Get(1)); got != "2" {
		t.Errorf("stored value = %q, want \"2\"", got)
	}

	// replacing is allowed any number of times
	if err := store.Set(&question, json.RawMessage(`0`), false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := string(store.Get(1)); got != "0" {
		t.Errorf("stored value = %q, want \"0\"", got)
	}
}

func TestSetRejectsMalformedShapes(t *testing.T) {
	tests := []struct {
		name     string
		question model.Question
		value    json.RawMessage
	}{
		{"string for single choice", q(1, model.SingleChoice, 0, 2), json.RawMessage(`"a"`)},
		{"negative index", q(1, model.SingleChoice, 0, 2), json.RawMessage(`-1`)},
		{"trailing garbage", q(1, model.SingleChoice, 0, 2), json.RawMessage(`1 2`)},
		{"number for multi choice", q(2, model.MultiChoice, []int{0}, 2), json.RawMessage(`1`)},
		{"negative member", q(2, model.MultiChoice, []int{0}, 2), json.RawMessage(`[0,-2]`)},
		{"array for free text", q(3, model.FreeText, "x", 2), json.RawMessage(`["x"]`)},
		{"object for grid", q(4, model.StatementGrid, []bool{true}, 2), json.RawMessage(`{"a":true}`)},
		{"not json at all", q(1, model.SingleChoice, 0, 2), json.RawMessage(`{{`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewAnswerStore()
			err := store.Set(&tt.question, tt.value, false)
			if !errors.Is(err, util.ErrMalformedAnswer) {
				t.Errorf("Set() error = %v, want ErrMalformedAnswer", err)
			}
			if store.Get(tt.question.ID) != nil {
				t.Error("store mutated by rejected write")
			}
		})
	}
}

func TestSetRejectsOutOfRangeIndex(t *testing.T) {
	withOptions := func(typ model.QuestionType, key interface{}, opts []string) model.Question {
		question := q(1, typ, key, 2)
		question.Options, _ = json.Marshal(opts)
		return question
	}
	four := []string{"a", "b", "c", "d"}

	tests := []struct {
		name     string
		question model.Question
		value    json.RawMessage
		toggle   bool
	}{
		{"single past options", withOptions(model.SingleChoice, 1, four), json.RawMessage(`4`), false},
		{"multi member past options", withOptions(model.MultiChoice, []int{0}, four), json.RawMessage(`[0,4]`), false},
		{"multi toggle past options", withOptions(model.MultiChoice, []int{0}, four), json.RawMessage(`4`), true},
		{"grid toggle past statements", withOptions(model.StatementGrid, []bool{true, false}, four[:2]), json.RawMessage(`{"index":2,"value":true}`), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewAnswerStore()
			err := store.Set(&tt.question, tt.value, tt.toggle)
			if !errors.Is(err, util.ErrMalformedAnswer) {
				t.Errorf("Set() error = %v, want ErrMalformedAnswer", err)
			}
			if store.Get(tt.question.ID) != nil {
				t.Error("store mutated by rejected write")
			}
		})
	}

	// last in-range index is still accepted
	store := NewAnswerStore()
	question := withOptions(model.SingleChoice, 1, four)
	if err := store.Set(&question, json.RawMessage(`3`), false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

func TestMultiChoiceToggle(t *testing.T) {
	question := q(2, model.MultiChoice, []int{0, 1}, 2)
	store := NewAnswerStore()

	// toggle on A then B
	if err := store.Set(&question, json.RawMessage(`0`), true); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(&question, json.RawMessage(`1`), true); err != nil {
		t.Fatal(err)
	}
	if got := string(store.Get(2)); got != "[0,1]" {
		t.Errorf("after two toggles: %q, want [0,1]", got)
	}

	// toggling A again removes it
	if err := store.Set(&question, json.RawMessage(`0`), true); err != nil {
		t.Fatal(err)
	}
	if got := string(store.Get(2)); got != "[1]" {
		t.Errorf("after re-toggle: %q, want [1]", got)
	}
}

func TestMultiChoiceReplaceSorts(t *testing.T) {
	question := q(2, model.MultiChoice, []int{0, 1}, 2)
	store := NewAnswerStore()

	if err := store.Set(&question, json.RawMessage(`[3,0,1]`), false); err != nil {
		t.Fatal(err)
	}
	if got := string(store.Get(2)); got != "[0,1,3]" {
		t.Errorf("stored = %q, want [0,1,3]", got)
	}
}

func TestGridToggleGrowsSparsely(t *testing.T) {
	question := q(4, model.StatementGrid, []bool{true, false, true}, 3)
	store := NewAnswerStore()

	if err := store.Set(&question, json.RawMessage(`{"index":2,"value":true}`), true); err != nil {
		t.Fatal(err)
	}
	if got := string(store.Get(4)); got != "[null,null,true]" {
		t.Errorf("stored = %q, want [null,null,true]", got)
	}

	if err := store.Set(&question, json.RawMessage(`{"index":0,"value":false}`), true); err != nil {
		t.Fatal(err)
	}
	if got := string(store.Get(4)); got != "[false,null,true]" {
		t.Errorf("stored = %q, want [false,null,true]", got)
	}
}

func TestAnswered(t *testing.T) {
	single := q(1, model.SingleChoice, 0, 2)
	multi := q(2, model.MultiChoice, []int{0}, 2)
	text := q(3, model.FreeText, "x", 2)
	grid := q(4, model.StatementGrid, []bool{true, false}, 2)

	store := NewAnswerStore()
	for _, question := range []*model.Question{&single, &multi, &text, &grid} {
		if store.Answered(question) {
			t.Errorf("empty store: %s reported answered", question.QuestionType)
		}
	}

	if err := store.Set(&single, json.RawMessage(`0`), false); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(&multi, json.RawMessage(`[]`), false); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(&text, json.RawMessage(`"  "`), false); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(&grid, json.RawMessage(`[null,null]`), false); err != nil {
		t.Fatal(err)
	}

	if !store.Answered(&single) {
		t.Error("single choice with index 0 should count as answered")
	}
	if store.Answered(&multi) {
		t.Error("empty index set should count as unanswered")
	}
	if store.Answered(&text) {
		t.Error("blank text should count as unanswered")
	}
	if store.Answered(&grid) {
		t.Error("all-unset grid should count as unanswered")
	}

	if err := store.Set(&grid, json.RawMessage(`{"index":1,"value":false}`), true); err != nil {
		t.Fatal(err)
	}
	if !store.Answered(&grid) {
		t.Error("grid with one set cell should count as answered")
	}
}

func TestToggleFlag(t *testing.T) {
	store := NewAnswerStore()
	if !store.ToggleFlag(7) {
		t.Error("first toggle should flag")
	}
	if !store.Flagged(7) {
		t.Error("question should be flagged")
	}
	if store.ToggleFlag(7) {
		t.Error("second toggle should unflag")
	}
	if store.Flagged(7) {
		t.Error("question should no longer be flagged")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	single := q(1, model.SingleChoice, 0, 2)
	multi := q(2, model.MultiChoice, []int{0}, 2)
	store := NewAnswerStore()

	if err := store.Set(&single, json.RawMessage(`1`), false); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(&multi, json.RawMessage(`[0,2]`), false); err != nil {
		t.Fatal(err)
	}
	store.ToggleFlag(9)
	store.ToggleFlag(2)

	answers, flagged := store.Snapshot()
	if !reflect.DeepEqual(flagged, []uint{2, 9}) {
		t.Errorf("flagged = %v, want [2 9]", flagged)
	}

	restored := RestoreAnswerStore(answers, flagged)
	if got := string(restored.Get(1)); got != "1" {
		t.Errorf("restored single = %q", got)
	}
	if got := string(restored.Get(2)); got != "[0,2]" {
		t.Errorf("restored multi = %q", got)
	}
	if !restored.Flagged(9) || !restored.Flagged(2) {
		t.Error("flags lost across restore")
	}

	// snapshot must be a copy, later writes do not leak into it
	if err := store.Set(&single, json.RawMessage(`3`), false); err != nil {
		t.Fatal(err)
	}
	if got := string(answers[1]); got != "1" {
		t.Errorf("snapshot mutated by later write: %q", got)
	}
}
