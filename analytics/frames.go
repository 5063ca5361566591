package analytics

import (
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"
)

// EmotionScore is one named emotion prediction for a frame.
type EmotionScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// EmotionFrame is one timestamped emotion observation extracted from the raw
// analysis dump. Time is in seconds relative to the start of the recording.
type EmotionFrame struct {
	Time     float64        `json:"time"`
	Emotions []EmotionScore `json:"emotions"`
}

// The upstream dump is an informal string serialization of the inference
// service's object graph, not a versioned format. These patterns scan it
// leniently: a block that does not match is skipped, never a hard error.
var (
	framePattern   = regexp.MustCompile(`(?s)FacePrediction\(frame=\d+,\s*time=([0-9.]+).*?emotions=\[(.*?)\]`)
	emotionPattern = regexp.MustCompile(`EmotionScore\(name=['"]([^'"]+)['"],\s*score=([0-9.]+)`)
)

// ExtractEmotionFrames scans a raw analysis dump for frame blocks and their
// embedded emotion scores. Frames with a malformed time value are skipped,
// and frames that carry no emotions are dropped entirely. The scan is a pure
// function of its input and never fails.
func ExtractEmotionFrames(raw string) []EmotionFrame {
	if raw == "" {
		log.Warn().Msg("no raw analysis text to extract emotion frames from")
		return nil
	}

	matches := framePattern.FindAllStringSubmatch(raw, -1)

	var frames []EmotionFrame
	for _, match := range matches {
		timeVal, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			log.Debug().Str("time", match[1]).Msg("skipping frame with malformed time value")
			continue
		}

		emotionMatches := emotionPattern.FindAllStringSubmatch(match[2], -1)
		emotions := make([]EmotionScore, 0, len(emotionMatches))
		for _, em := range emotionMatches {
			score, err := strconv.ParseFloat(em[2], 64)
			if err != nil {
				score = 0.0
			}
			emotions = append(emotions, EmotionScore{Name: em[1], Score: score})
		}

		// A frame without emotion data carries no signal.
		if len(emotions) == 0 {
			continue
		}
		frames = append(frames, EmotionFrame{Time: timeVal, Emotions: emotions})
	}

	log.Info().Int("frames", len(frames)).Msg("extracted frames with emotion data")
	return frames
}
