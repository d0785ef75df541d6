package audio

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/headcut/internal/ffmpeg"
)

// time range classified as speech
type Interval struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

func (i Interval) End() float64 {
	return i.Start + i.Duration
}

// silencedetect tuning
type SilenceOptions struct {
	NoiseDB            float64 // silence threshold in dB
	MinSilenceDuration float64 // seconds of quiet that count as a gap
	MinSegmentDuration float64 // shortest speech interval kept
}

func DefaultSilenceOptions() SilenceOptions {
	return SilenceOptions{
		NoiseDB:            -35,
		MinSilenceDuration: 0.35,
		MinSegmentDuration: 0.3,
	}
}

// detects speech intervals of a media file by running ffmpeg's silencedetect
// filter over its audio. never empty when total > 0.
func DetectSpeechSegments(
	ctx context.Context,
	mediaPath string,
	total float64,
	opts SilenceOptions,
) ([]Interval, error) {
	filter := fmt.Sprintf(
		"silencedetect=noise=%sdB:d=%s",
		strconv.FormatFloat(opts.NoiseDB, 'f', -1, 64),
		strconv.FormatFloat(opts.MinSilenceDuration, 'f', -1, 64),
	)

	stream := ffmpeg.Input(mediaPath).
		Output("-", ffmpeg.KwArgs{"af": filter, "f": "null"}).
		GlobalArgs("-hide_banner")

	stderr, err := ffmpegbin.Run(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg silencedetect failed: %w", err)
	}

	return ParseSilenceLog(stderr, total, opts.MinSegmentDuration), nil
}

// turns silencedetect log lines into speech intervals. each silence start
// closes the running interval, each silence end opens the next one.
func ParseSilenceLog(log string, total, minSegment float64) []Interval {
	var (
		current  float64
		segments []Interval
	)

	scanner := bufio.NewScanner(strings.NewReader(log))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if v, ok := valueAfter(line, "silence_start:"); ok {
			if v-current >= minSegment {
				segments = append(segments, Interval{Start: current, Duration: v - current})
			}
			current = v
			continue
		}
		if v, ok := valueAfter(line, "silence_end:"); ok {
			current = v
		}
	}

	if total > current {
		if tail := total - current; tail >= minSegment {
			segments = append(segments, Interval{Start: current, Duration: tail})
		}
	}

	if len(segments) == 0 && total > 0 {
		segments = []Interval{{Start: 0, Duration: total}}
	}
	return segments
}

func valueAfter(line, marker string) (float64, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return 0, false
	}
	fields := strings.Fields(line[idx+len(marker):])
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sum of interval durations
func TotalDuration(intervals []Interval) float64 {
	var sum float64
	for _, iv := range intervals {
		sum += iv.Duration
	}
	return sum
}
