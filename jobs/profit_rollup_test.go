package jobs

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBuildRequestCronMode(t *testing.T) {
	j := NewProfitRollupJob(nil, nil, nil)
	j.clock = func() time.Time {
		return time.Date(2026, 5, 20, 2, 30, 0, 0, time.UTC)
	}

	req, err := j.buildRequest(ProfitRollupPayload{WindowDays: 7})
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if want := time.Date(2026, 5, 19, 0, 0, 0, 0, time.UTC); !req.End.Equal(want) {
		t.Fatalf("end = %v, want yesterday %v", req.End, want)
	}
	if want := time.Date(2026, 5, 13, 0, 0, 0, 0, time.UTC); !req.Start.Equal(want) {
		t.Fatalf("start = %v, want %v", req.Start, want)
	}
	if !req.FillZeros {
		t.Fatalf("cron mode must fill zeros")
	}

	// Missing window defaults to 7 days.
	req, err = j.buildRequest(ProfitRollupPayload{})
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if got := req.End.Sub(req.Start).Hours() / 24; got != 6 {
		t.Fatalf("window span = %v days, want 6", got)
	}
}

func TestBuildRequestExplicitWindow(t *testing.T) {
	j := NewProfitRollupJob(nil, nil, nil)
	clientID := uuid.New()

	req, err := j.buildRequest(ProfitRollupPayload{
		ClientID: clientID.String(),
		Start:    "2026-04-01",
		End:      "2026-04-30",
		Force:    true,
	})
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if req.ClientID != clientID {
		t.Fatalf("client id = %v", req.ClientID)
	}
	if req.Start.Format("2006-01-02") != "2026-04-01" || req.End.Format("2006-01-02") != "2026-04-30" {
		t.Fatalf("window = %v..%v", req.Start, req.End)
	}
	if !req.Force || req.FillZeros {
		t.Fatalf("flags = force:%v fill:%v", req.Force, req.FillZeros)
	}
}

func TestBuildRequestRejectsBadInput(t *testing.T) {
	j := NewProfitRollupJob(nil, nil, nil)
	cases := []ProfitRollupPayload{
		{ClientID: "not-a-uuid"},
		{Start: "2026-04-01", End: "30/04/2026"},
		{Start: "bad", End: "2026-04-30"},
	}
	for i, payload := range cases {
		if _, err := j.buildRequest(payload); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestTaskConstructorsCarryType(t *testing.T) {
	task, err := NewProfitRollupTask(ProfitRollupPayload{WindowDays: 3})
	if err != nil {
		t.Fatalf("NewProfitRollupTask: %v", err)
	}
	if task.Type() != TaskProfitRollup {
		t.Fatalf("type = %s", task.Type())
	}

	task, err = NewAttributionWarmupTask(AttributionWarmupPayload{RangeDays: 30})
	if err != nil {
		t.Fatalf("NewAttributionWarmupTask: %v", err)
	}
	if task.Type() != TaskAttributionWarmup {
		t.Fatalf("type = %s", task.Type())
	}
}
