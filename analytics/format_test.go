package analytics

import "testing"

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00"},
		{-5, "00:00:00"},
		{1_000, "00:00:01"},
		{61_000, "00:01:01"},
		{3_661_000, "01:01:01"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.ms); got != tc.want {
			t.Fatalf("FormatTimestamp(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}

func TestFormatRelativeTimestamp(t *testing.T) {
	cases := []struct {
		start, current int64
		want           string
	}{
		{1_000, 91_000, "01:30"},
		{1_000, 1_000, "00:00"},
		{0, 5_000, "00:00"},
		{10_000, 5_000, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatRelativeTimestamp(tc.start, tc.current); got != tc.want {
			t.Fatalf("FormatRelativeTimestamp(%d, %d) = %q, want %q", tc.start, tc.current, got, tc.want)
		}
	}
}

func TestRenderTranscript(t *testing.T) {
	entries := []TranscriptEntry{
		{Speaker: "Interviewer", TimestampMS: 60_000, DurationMS: 2_000, Text: "Can you hear me?"},
		{Speaker: "", TimestampMS: 65_000, DurationMS: 1_000, Text: "Yes"},
		{Speaker: "Candidate", TimestampMS: 70_000, DurationMS: 500, Text: ""},
	}

	got := RenderTranscript(entries)
	want := "00:00 | Interviewer: Can you hear me?\n00:05 | Unknown: Yes\n"
	if got != want {
		t.Fatalf("transcript = %q, want %q", got, want)
	}

	if got := RenderTranscript(nil); got != "" {
		t.Fatalf("transcript for no entries = %q, want empty", got)
	}
}
