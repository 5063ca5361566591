package analytics

import (
	"fmt"
	"strings"
)

// FormatTimestamp renders a millisecond timestamp as HH:MM:SS.
func FormatTimestamp(timestampMS int64) string {
	if timestampMS <= 0 {
		return "00:00:00"
	}
	totalSeconds := timestampMS / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatRelativeTimestamp renders the offset from startMS to currentMS as
// MM:SS, the form the question filter expects on transcript lines.
func FormatRelativeTimestamp(startMS, currentMS int64) string {
	if startMS <= 0 || currentMS <= 0 || currentMS < startMS {
		return "00:00"
	}
	relativeSeconds := (currentMS - startMS) / 1000
	return fmt.Sprintf("%02d:%02d", relativeSeconds/60, relativeSeconds%60)
}

// RenderTranscript flattens raw transcript entries into the "MM:SS |
// Speaker: text" view used for question detection, with timestamps relative
// to the earliest entry.
func RenderTranscript(entries []TranscriptEntry) string {
	if len(entries) == 0 {
		return ""
	}

	baseline := Baseline(entries)
	var b strings.Builder
	for _, entry := range entries {
		if entry.Text == "" {
			continue
		}
		speaker := entry.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		b.WriteString(FormatRelativeTimestamp(baseline, entry.TimestampMS))
		b.WriteString(" | ")
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(entry.Text)
		b.WriteString("\n")
	}
	return b.String()
}
