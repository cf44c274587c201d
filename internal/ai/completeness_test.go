package ai

import "testing"

func TestApplyCompleteness(t *testing.T) {
	t.Parallel()

	current := map[string]int{
		"Values & Beliefs":    10,
		"Lifestyle & Routine": 90,
		"Date Dynamics":       0,
	}

	raw := "Here you go:\n```json\n{\"Values & Beliefs\": 50, \"Lifestyle & Routine\": 80, \"Date Dynamics\": 25, \"Unknown\": 90}\n```"

	got, err := ApplyCompleteness(current, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		theme string
		want  int
	}{
		{theme: "Values & Beliefs", want: 20},
		{theme: "Lifestyle & Routine", want: 100},
		{theme: "Date Dynamics", want: 0},
	}
	for _, tt := range tests {
		if got[tt.theme] != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.theme, tt.want, got[tt.theme])
		}
	}

	if _, ok := got["Unknown"]; ok {
		t.Fatalf("unknown themes must be ignored")
	}
	if current["Values & Beliefs"] != 10 {
		t.Fatalf("current scores must not be modified")
	}
}

func TestApplyCompletenessFallsBackOnMalformedResponse(t *testing.T) {
	t.Parallel()

	current := map[string]int{"Values & Beliefs": 40}

	for _, raw := range []string{"no block here", "```json\n{not json}\n```"} {
		got, err := ApplyCompleteness(current, raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		if len(got) != 1 || got["Values & Beliefs"] != 40 {
			t.Fatalf("expected unchanged scores, got %v", got)
		}
	}
}

func TestApplyCompletenessStartsFromZero(t *testing.T) {
	t.Parallel()

	got, err := ApplyCompleteness(nil, "```json\n{\"Family & Social\": 60}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(DatingThemes) {
		t.Fatalf("expected every theme to be scored, got %d", len(got))
	}
	if got["Family & Social"] != 12 {
		t.Fatalf("expected 12, got %d", got["Family & Social"])
	}
}
