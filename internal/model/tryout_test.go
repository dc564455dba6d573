package model

import (
	"testing"
	"time"
)

func TestAvailabilityAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		tryout Tryout
		want   Availability
	}{
		{
			"inside window",
			Tryout{IsActive: true, StartAt: past, EndAt: &future, AccessMode: AccessScheduled},
			AvailabilityOpen,
		},
		{
			"before start",
			Tryout{IsActive: true, StartAt: future, AccessMode: AccessScheduled},
			AvailabilityUpcoming,
		},
		{
			"after end",
			Tryout{IsActive: true, StartAt: past.Add(-time.Hour), EndAt: &past, AccessMode: AccessScheduled},
			AvailabilityClosed,
		},
		{
			"no end stays open",
			Tryout{IsActive: true, StartAt: past, AccessMode: AccessScheduled},
			AvailabilityOpen,
		},
		{
			"inactive",
			Tryout{IsActive: false, StartAt: past, AccessMode: AccessScheduled},
			AvailabilityUpcoming,
		},
		{
			"manual open overrides schedule",
			Tryout{IsActive: true, StartAt: future, AccessMode: AccessManualOpened},
			AvailabilityOpen,
		},
		{
			"manual close overrides schedule",
			Tryout{IsActive: true, StartAt: past, EndAt: &future, AccessMode: AccessManualClosed},
			AvailabilityClosed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tryout.AvailabilityAt(now); got != tt.want {
				t.Errorf("AvailabilityAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttemptDecoders(t *testing.T) {
	a := Attempt{}
	answers, err := a.AnswerMap()
	if err != nil || len(answers) != 0 {
		t.Errorf("empty AnswerMap() = %v, %v", answers, err)
	}

	a.Answers = []byte(`{"1":2,"2":[0,1]}`)
	a.Flagged = []byte(`[2,5]`)
	a.SectionResults = []byte(`{"pu":{"subtes":"pu","benar":3,"salah":1,"total":4,"skorMentah":6,"skorMaksimal":8,"skorAkhir":801.25}}`)

	answers, err = a.AnswerMap()
	if err != nil {
		t.Fatalf("AnswerMap() error = %v", err)
	}
	if string(answers[1]) != "2" || string(answers[2]) != "[0,1]" {
		t.Errorf("AnswerMap() = %v", answers)
	}

	flagged, err := a.FlaggedIDs()
	if err != nil || len(flagged) != 2 {
		t.Errorf("FlaggedIDs() = %v, %v", flagged, err)
	}

	results, err := a.ResultMap()
	if err != nil {
		t.Fatalf("ResultMap() error = %v", err)
	}
	r := results["pu"]
	if r.Correct != 3 || r.RawScore != 6 || r.Score != 801.25 {
		t.Errorf("ResultMap()[pu] = %+v", r)
	}
}
