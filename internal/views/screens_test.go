package views

import (
	"strings"
	"testing"
)

func TestDiceFacePipCounts(t *testing.T) {
	for face := 1; face <= 6; face++ {
		got := strings.Count(DiceFace(face), "●")
		if got != face {
			t.Fatalf("face %d has %d pips", face, got)
		}
	}
	if !strings.Contains(DiceFace(9), "?") {
		t.Fatal("expected unknown face marker")
	}
}

func TestRenderCountersShowsProjection(t *testing.T) {
	out := RenderCounters(CountersData{Remaining: 30, Reserved: 0, Projected: 30, NextReset: "03:00"})
	for _, want := range []string{"days: 30", "projected: 30", "next reset: 03:00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestRenderTaskDetail(t *testing.T) {
	if out := RenderTaskDetail(TaskDetailData{}); !strings.Contains(out, "no selection") {
		t.Fatalf("unexpected empty detail: %q", out)
	}
	out := RenderTaskDetail(TaskDetailData{
		ID:             "read",
		Title:          "Read",
		Phase:          "completing",
		Completion:     "15m",
		SubtractedDays: 1,
		OncePerDay:     true,
		ProgressView:   "[==  ]",
		ProgressPct:    40,
		Remaining:      "9m0s",
	})
	for _, want := range []string{"phase: COMPLETING", "once per day", "40%", "completes in: 9m0s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestRenderRollsAndPending(t *testing.T) {
	if RenderRolls(nil) != "" {
		t.Fatal("expected empty rolls view")
	}
	out := RenderRolls([]RollData{{ID: "d1", Position: 3, Remaining: 4, SpinnerView: "*"}, {ID: "d2", Position: 6, Finished: true}})
	if !strings.Contains(out, "d1: * rolling (4 left)") || !strings.Contains(out, "d2: landed") {
		t.Fatalf("unexpected rolls view: %q", out)
	}
	if !strings.Contains(RenderPending(nil), "nothing scheduled") {
		t.Fatal("expected empty pending marker")
	}
	out = RenderPending([]PendingData{{Key: "dailyTaskReset", Kind: "dailyTaskReset", FireAt: "03:00"}})
	if !strings.Contains(out, "- dailyTaskReset [dailyTaskReset] @ 03:00") {
		t.Fatalf("unexpected pending view: %q", out)
	}
}

func TestRenderAppIncludesSections(t *testing.T) {
	out := RenderApp(AppData{
		Header:       "dailyd",
		Counters:     "days: 30",
		LeftPane:     "left",
		RightPane:    "right",
		StatusLine:   "status: ok",
		Notification: "ping",
		Footer:       "keys",
	})
	for _, want := range []string{"dailyd", "days: 30", "left", "right", "status: ok", "ping", "keys"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in rendered app", want)
		}
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	if RenderMarkdown("  ", 40) != "" {
		t.Fatal("expected empty markdown output")
	}
	if out := RenderMarkdown("**bold** text", 40); !strings.Contains(out, "bold") {
		t.Fatalf("unexpected markdown output: %q", out)
	}
}
