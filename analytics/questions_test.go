package analytics

import (
	"strings"
	"testing"
)

func segmentAt(speaker string, start float64, peak float64) TranscriptSegment {
	return TranscriptSegment{
		Speaker:     speaker,
		Text:        "answer at " + speaker,
		Start:       start,
		End:         start + 2,
		AvgEmotions: map[string]float64{"Joy": peak},
	}
}

func TestFilterRelevantQuestionsDropsSmallTalk(t *testing.T) {
	transcript := strings.Join([]string{
		"00:05 | Interviewer: How are you doing today?",
		"00:10 | Interviewer: Can you describe your sales process?",
	}, "\n")
	segments := []TranscriptSegment{segmentAt("Candidate", 12, 0.5)}

	pairs := FilterRelevantQuestions(segments, transcript, "")
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0].Question != "Can you describe your sales process?" {
		t.Fatalf("question = %q", pairs[0].Question)
	}
	if pairs[0].QuestionTimestamp != "00:10" {
		t.Fatalf("timestamp = %q, want 00:10", pairs[0].QuestionTimestamp)
	}
}

func TestFilterRelevantQuestionsExcludesCandidateLines(t *testing.T) {
	transcript := strings.Join([]string{
		"00:05 | Jane Doe: Can you explain the role requirements?",
		"00:20 | Interviewer: Tell me about your previous role",
	}, "\n")
	segments := []TranscriptSegment{segmentAt("Jane Doe", 25, 0.4)}

	pairs := FilterRelevantQuestions(segments, transcript, "jane doe")
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0].Question != "Tell me about your previous role" {
		t.Fatalf("question = %q", pairs[0].Question)
	}
}

func TestFilterRelevantQuestionsWindowPairing(t *testing.T) {
	transcript := strings.Join([]string{
		"00:10 | Interviewer: Describe your biggest deal",
		"01:00 | Interviewer: What is your quota attainment?",
	}, "\n")
	segments := []TranscriptSegment{
		segmentAt("Candidate", 15, 0.2),
		segmentAt("Candidate", 45, 0.2),
		segmentAt("Candidate", 60, 0.9), // exactly at the second question: next window
		segmentAt("Candidate", 90, 0.3),
	}

	pairs := FilterRelevantQuestions(segments, transcript, "")
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(pairs))
	}
	if got := len(pairs[0].ResponseSegments); got != 2 {
		t.Fatalf("first window segments = %d, want 2", got)
	}
	if got := len(pairs[1].ResponseSegments); got != 2 {
		t.Fatalf("second window segments = %d, want 2", got)
	}
	if pairs[1].ResponseSegments[0].Start != 60 {
		t.Fatalf("second window starts at %v, want 60", pairs[1].ResponseSegments[0].Start)
	}
}

func TestFilterRelevantQuestionsPicksStrongestSegment(t *testing.T) {
	transcript := "00:00 | Interviewer: Have you managed a team before?"
	segments := []TranscriptSegment{
		segmentAt("Candidate", 5, 0.3),
		segmentAt("Candidate", 10, 0.8),
		segmentAt("Candidate", 15, 0.8), // tie: the earlier segment wins
	}

	pairs := FilterRelevantQuestions(segments, transcript, "")
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0].Response.Start != 10 {
		t.Fatalf("representative starts at %v, want 10", pairs[0].Response.Start)
	}
	if got := len(pairs[0].ResponseSegments); got != 3 {
		t.Fatalf("response segments = %d, want 3", got)
	}
}

func TestFilterRelevantQuestionsDropsEmptyWindows(t *testing.T) {
	transcript := strings.Join([]string{
		"00:10 | Interviewer: Describe your ideal customer",
		"01:00 | Interviewer: What is your close rate?",
	}, "\n")
	// No segment falls inside the first window [10, 60).
	segments := []TranscriptSegment{segmentAt("Candidate", 75, 0.5)}

	pairs := FilterRelevantQuestions(segments, transcript, "")
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if pairs[0].Question != "What is your close rate?" {
		t.Fatalf("question = %q", pairs[0].Question)
	}
}

func TestScanQuestionsIndicatorsAndQuestionMark(t *testing.T) {
	transcript := strings.Join([]string{
		"00:05 | Interviewer: Walk me through last quarter.",
		"00:15 | Interviewer: So you closed it early?",
		"00:25 | Interviewer: Tell me about the objection handling",
		"not a transcript line",
	}, "\n")

	questions := scanQuestions(transcript, "")
	if len(questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(questions))
	}
	if questions[0].timeSeconds != 15 || questions[1].timeSeconds != 25 {
		t.Fatalf("question times = %v, %v, want 15, 25", questions[0].timeSeconds, questions[1].timeSeconds)
	}
}

func TestParseTranscriptLine(t *testing.T) {
	timestamp, speaker, text, ok := parseTranscriptLine("03:07 | Interviewer: Do you have CRM experience?")
	if !ok {
		t.Fatal("expected line to parse")
	}
	if timestamp != "03:07" || speaker != "Interviewer" || text != "Do you have CRM experience?" {
		t.Fatalf("parsed %q / %q / %q", timestamp, speaker, text)
	}

	if _, _, _, ok := parseTranscriptLine("no pipe here"); ok {
		t.Fatal("expected line without separator to be rejected")
	}

	timestamp, _, text, ok = parseTranscriptLine(" | crosstalk without speaker")
	if !ok || timestamp != "00:00" || text != "crosstalk without speaker" {
		t.Fatalf("parsed %q / %q, ok=%v", timestamp, text, ok)
	}
}

func TestTimestampToSeconds(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"00:00", 0},
		{"01:30", 90},
		{"10:05", 605},
		{"garbage", 0},
		{"aa:05", 0},
	}
	for _, tc := range cases {
		if got := timestampToSeconds(tc.in); got != tc.want {
			t.Fatalf("timestampToSeconds(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
