// Package engine implements the in-memory exam-session runtime: the answer
// store, the shared correctness predicate and section scoring, the per-section
// countdown and navigation state, the autosave agent and the integrity
// monitor. Everything here is independent of the HTTP and persistence layers.
package engine

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"tryout_backend/internal/model"
	"tryout_backend/internal/util"
)

// AnswerStore maps question IDs to the participant's current answer value plus
// the advisory flagged-for-review set. Values are kept as raw JSON in the
// shape dictated by each question's type.
type AnswerStore struct {
	answers map[uint]json.RawMessage
	flagged map[uint]struct{}
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		answers: make(map[uint]json.RawMessage),
		flagged: make(map[uint]struct{}),
	}
}

// RestoreAnswerStore rebuilds a store from a persisted snapshot.
func RestoreAnswerStore(answers map[uint]json.RawMessage, flagged []uint) *AnswerStore {
	s := NewAnswerStore()
	for id, v := range answers {
		s.answers[id] = append(json.RawMessage(nil), v...)
	}
	for _, id := range flagged {
		s.flagged[id] = struct{}{}
	}
	return s
}

// gridToggle sets one statement cell. Grids are stored as []*bool so that
// "answered false" stays distinct from "not answered yet".
type gridToggle struct {
	Index int  `json:"index"`
	Value bool `json:"value"`
}

// Set validates the value against the question's declared type and writes it.
// For multi-choice and statement-grid questions toggle=true means "toggle this
// option" rather than "replace the whole value". A write whose shape does not
// match the question type, or an option index past the question's option list,
// fails with ErrMalformedAnswer and leaves the store untouched.
func (s *AnswerStore) Set(q *model.Question, value json.RawMessage, toggle bool) error {
	options := q.OptionCount()
	switch q.QuestionType {
	case model.SingleChoice:
		var idx int
		if err := strictUnmarshal(value, &idx); err != nil || !validIndex(idx, options) {
			return util.ErrMalformedAnswer
		}
		s.answers[q.ID] = compact(value)

	case model.MultiChoice:
		if toggle {
			var idx int
			if err := strictUnmarshal(value, &idx); err != nil || !validIndex(idx, options) {
				return util.ErrMalformedAnswer
			}
			current := s.multiValue(q.ID)
			current = toggleMember(current, idx)
			s.answers[q.ID] = mustMarshal(current)
			return nil
		}
		var idxs []int
		if err := strictUnmarshal(value, &idxs); err != nil {
			return util.ErrMalformedAnswer
		}
		for _, i := range idxs {
			if !validIndex(i, options) {
				return util.ErrMalformedAnswer
			}
		}
		sort.Ints(idxs)
		s.answers[q.ID] = mustMarshal(idxs)

	case model.FreeText:
		var text string
		if err := strictUnmarshal(value, &text); err != nil {
			return util.ErrMalformedAnswer
		}
		s.answers[q.ID] = compact(value)

	case model.StatementGrid:
		if toggle {
			var t gridToggle
			if err := strictUnmarshal(value, &t); err != nil || !validIndex(t.Index, options) {
				return util.ErrMalformedAnswer
			}
			grid := s.gridValue(q.ID)
			for len(grid) <= t.Index {
				grid = append(grid, nil)
			}
			v := t.Value
			grid[t.Index] = &v
			s.answers[q.ID] = mustMarshal(grid)
			return nil
		}
		var grid []*bool
		if err := strictUnmarshal(value, &grid); err != nil {
			return util.ErrMalformedAnswer
		}
		s.answers[q.ID] = compact(value)

	default:
		return util.ErrMalformedAnswer
	}
	return nil
}

// Get returns the raw stored value, nil when the question is unanswered.
func (s *AnswerStore) Get(questionID uint) json.RawMessage {
	return s.answers[questionID]
}

// Answered reports whether the question holds a non-empty value. An empty
// string, empty index set or all-unset grid counts as unanswered.
func (s *AnswerStore) Answered(q *model.Question) bool {
	raw, ok := s.answers[q.ID]
	if !ok {
		return false
	}
	switch q.QuestionType {
	case model.FreeText:
		var text string
		if json.Unmarshal(raw, &text) != nil {
			return false
		}
		return strings.TrimSpace(text) != ""
	case model.MultiChoice:
		var idxs []int
		if json.Unmarshal(raw, &idxs) != nil {
			return false
		}
		return len(idxs) > 0
	case model.StatementGrid:
		var grid []*bool
		if json.Unmarshal(raw, &grid) != nil {
			return false
		}
		for _, cell := range grid {
			if cell != nil {
				return true
			}
		}
		return false
	default:
		return len(raw) > 0
	}
}

// ToggleFlag flips review-flag membership and reports whether the question is
// now flagged. Purely advisory, never affects scoring.
func (s *AnswerStore) ToggleFlag(questionID uint) bool {
	if _, ok := s.flagged[questionID]; ok {
		delete(s.flagged, questionID)
		return false
	}
	s.flagged[questionID] = struct{}{}
	return true
}

func (s *AnswerStore) Flagged(questionID uint) bool {
	_, ok := s.flagged[questionID]
	return ok
}

// Snapshot copies the store into plain maps/slices for persistence. Flagged
// IDs come back sorted so snapshots compare stably.
func (s *AnswerStore) Snapshot() (map[uint]json.RawMessage, []uint) {
	answers := make(map[uint]json.RawMessage, len(s.answers))
	for id, v := range s.answers {
		answers[id] = append(json.RawMessage(nil), v...)
	}
	flagged := make([]uint, 0, len(s.flagged))
	for id := range s.flagged {
		flagged = append(flagged, id)
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i] < flagged[j] })
	return answers, flagged
}

func (s *AnswerStore) multiValue(questionID uint) []int {
	var idxs []int
	if raw, ok := s.answers[questionID]; ok {
		_ = json.Unmarshal(raw, &idxs)
	}
	return idxs
}

func (s *AnswerStore) gridValue(questionID uint) []*bool {
	var grid []*bool
	if raw, ok := s.answers[questionID]; ok {
		_ = json.Unmarshal(raw, &grid)
	}
	return grid
}

// validIndex bounds an option index against the question's option list.
// Questions without a stored option list only reject negatives.
func validIndex(idx, options int) bool {
	if idx < 0 {
		return false
	}
	return options == 0 || idx < options
}

func toggleMember(set []int, idx int) []int {
	for i, v := range set {
		if v == idx {
			return append(set[:i], set[i+1:]...)
		}
	}
	set = append(set, idx)
	sort.Ints(set)
	return set
}

// strictUnmarshal rejects trailing garbage and type mismatches.
func strictUnmarshal(raw json.RawMessage, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return util.ErrMalformedAnswer
	}
	return nil
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return append(json.RawMessage(nil), buf.Bytes()...)
}

func mustMarshal(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
