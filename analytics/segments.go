package analytics

// TranscriptEntry is one raw transcript utterance as delivered by the bot
// hosting API: absolute millisecond timestamp, duration, speaker, text.
type TranscriptEntry struct {
	Speaker     string `json:"speaker"`
	TimestampMS int64  `json:"timestamp_ms"`
	DurationMS  int64  `json:"duration_ms"`
	Text        string `json:"transcription"`
}

// TranscriptSegment is one utterance with start/end in seconds relative to
// the transcript baseline and, when frames overlap it, averaged emotion
// scores.
type TranscriptSegment struct {
	Speaker     string             `json:"speaker"`
	Text        string             `json:"transcript"`
	Start       float64            `json:"start"`
	End         float64            `json:"end"`
	AvgEmotions map[string]float64 `json:"avg_emotions"`
}

// Baseline returns the minimum timestamp across all entries, in milliseconds.
// All relative segment times are measured from it.
func Baseline(entries []TranscriptEntry) int64 {
	if len(entries) == 0 {
		return 0
	}
	baseline := entries[0].TimestampMS
	for _, entry := range entries[1:] {
		if entry.TimestampMS < baseline {
			baseline = entry.TimestampMS
		}
	}
	return baseline
}

// BuildSegments converts raw transcript entries into baseline-relative
// segments and fills in the per-segment emotion averages from the given
// frames.
func BuildSegments(entries []TranscriptEntry, frames []EmotionFrame) []TranscriptSegment {
	if len(entries) == 0 {
		return nil
	}

	baseline := Baseline(entries)
	segments := make([]TranscriptSegment, 0, len(entries))
	for _, entry := range entries {
		start := float64(entry.TimestampMS-baseline) / 1000.0
		end := start + float64(entry.DurationMS)/1000.0
		segments = append(segments, TranscriptSegment{
			Speaker:     entry.Speaker,
			Text:        entry.Text,
			Start:       start,
			End:         end,
			AvgEmotions: AverageEmotionsForSegment(frames, start, end),
		})
	}
	return segments
}

// AverageEmotionsForSegment averages emotion scores over the frames whose
// time falls inside [start, end], both bounds inclusive. Returns an empty
// map when no frame is in range.
//
// The divisor is the number of selected frames, not the per-emotion
// occurrence count: an emotion present in only some of the selected frames
// has its average depressed accordingly.
func AverageEmotionsForSegment(frames []EmotionFrame, start, end float64) map[string]float64 {
	totals := map[string]float64{}
	count := 0
	for _, frame := range frames {
		if frame.Time < start || frame.Time > end {
			continue
		}
		for _, emotion := range frame.Emotions {
			totals[emotion.Name] += emotion.Score
		}
		count++
	}
	if count == 0 {
		return map[string]float64{}
	}

	averages := make(map[string]float64, len(totals))
	for name, total := range totals {
		averages[name] = total / float64(count)
	}
	return averages
}

// PeakEmotion returns the single highest emotion score attached to a
// segment, or 0 when it has none.
func (s TranscriptSegment) PeakEmotion() float64 {
	peak := 0.0
	for _, score := range s.AvgEmotions {
		if score > peak {
			peak = score
		}
	}
	return peak
}
