package analytics

import (
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// QuestionAnswerPair links one interviewer question to the candidate
// response segments that follow it, with the segment carrying the strongest
// single emotion score singled out as the representative response.
type QuestionAnswerPair struct {
	Question          string              `json:"question"`
	QuestionTimestamp string              `json:"question_timestamp"`
	Response          TranscriptSegment   `json:"response"`
	ResponseSegments  []TranscriptSegment `json:"all_response_segments"`
}

// Lead phrases that mark a line as a likely interview question even without
// a question mark.
var questionIndicators = []string{
	"tell me about", "what is", "how would", "describe",
	"explain", "can you", "do you", "have you",
}

// Small talk and technical-check phrases that disqualify a question from
// analysis.
var irrelevantPhrases = []string{
	"how are you", "nice to meet", "your name", "introduce yourself",
	"weather", "doing today", "go for it", "pan", "testing", "hear me",
	"can you see", "technical", "connection",
}

type question struct {
	timestamp   string
	timeSeconds float64
	text        string
}

// FilterRelevantQuestions scans a rendered transcript ("MM:SS | Speaker:
// text" lines) for interviewer questions, drops small talk, and pairs each
// surviving question with the segments spoken before the next question.
// Questions with no segments in their window are dropped. The candidate's
// own lines never count as questions.
func FilterRelevantQuestions(segments []TranscriptSegment, transcript string, candidateName string) []QuestionAnswerPair {
	questions := scanQuestions(transcript, candidateName)

	relevant := questions[:0]
	for _, q := range questions {
		if !containsAny(strings.ToLower(q.text), irrelevantPhrases) {
			relevant = append(relevant, q)
		}
	}

	pairs := make([]QuestionAnswerPair, 0, len(relevant))
	for i, q := range relevant {
		windowStart := q.timeSeconds
		windowEnd := math.Inf(1)
		if i < len(relevant)-1 {
			windowEnd = relevant[i+1].timeSeconds
		}

		var responses []TranscriptSegment
		for _, segment := range segments {
			if segment.Start >= windowStart && segment.Start < windowEnd {
				responses = append(responses, segment)
			}
		}
		if len(responses) == 0 {
			continue
		}

		strongest := responses[0]
		for _, segment := range responses[1:] {
			if segment.PeakEmotion() > strongest.PeakEmotion() {
				strongest = segment
			}
		}

		pairs = append(pairs, QuestionAnswerPair{
			Question:          q.text,
			QuestionTimestamp: q.timestamp,
			Response:          strongest,
			ResponseSegments:  responses,
		})
	}

	log.Info().Int("pairs", len(pairs)).Msg("identified relevant question-answer pairs")
	return pairs
}

func scanQuestions(transcript string, candidateName string) []question {
	var questions []question
	for _, line := range strings.Split(transcript, "\n") {
		timestamp, speaker, text, ok := parseTranscriptLine(line)
		if !ok {
			continue
		}

		if candidateName != "" && strings.Contains(strings.ToLower(speaker), strings.ToLower(candidateName)) {
			continue
		}

		if !strings.Contains(text, "?") && !containsAny(strings.ToLower(text), questionIndicators) {
			continue
		}

		questions = append(questions, question{
			timestamp:   timestamp,
			timeSeconds: timestampToSeconds(timestamp),
			text:        text,
		})
	}
	return questions
}

// parseTranscriptLine splits a "MM:SS | Speaker: text" line. Lines without a
// pipe separator are not transcript lines and are ignored.
func parseTranscriptLine(line string) (timestamp, speaker, text string, ok bool) {
	sep := strings.Index(line, "|")
	if sep < 0 {
		return "", "", "", false
	}

	timestamp = strings.TrimSpace(line[:sep])
	if timestamp == "" {
		timestamp = "00:00"
	}

	rest := strings.TrimSpace(line[sep+1:])
	if rest == "" {
		return "", "", "", false
	}

	if colon := strings.Index(rest, ":"); colon >= 0 {
		speaker = strings.TrimSpace(rest[:colon])
		text = strings.TrimSpace(rest[colon+1:])
	} else {
		text = rest
	}
	return timestamp, speaker, text, true
}

// timestampToSeconds parses "MM:SS" into seconds. Malformed timestamps fall
// back to zero rather than failing the line.
func timestampToSeconds(timestamp string) float64 {
	parts := strings.SplitN(timestamp, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0
	}
	return float64(minutes*60 + seconds)
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
