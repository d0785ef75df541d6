package subtitle

import (
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/mgpai22/headcut/internal/audio"
)

const (
	fallbackChunkWords = 10
	cueLeadIn          = 0.05
	minCueLength       = 0.4
	// intervals shorter than this cannot hold the lead-in plus minimum length
	shortInterval = 0.25
)

// transcript from a file, falling back to inline text. empty when neither is set.
func ReadTranscript(text, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read transcript file %s: %w", file, err)
		}
		return string(data), nil
	}
	return text, nil
}

// splits text after sentence punctuation followed by whitespace. text without
// any usable split is chunked into groups of ten words.
func SentenceTokenize(text string) []string {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return nil
	}

	var parts []string
	runes := []rune(stripped)
	begin := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		if part := strings.TrimSpace(string(runes[begin : i+1])); part != "" {
			parts = append(parts, part)
		}
		begin = j
		i = j - 1
	}
	if part := strings.TrimSpace(string(runes[begin:])); part != "" {
		parts = append(parts, part)
	}
	if len(parts) > 0 {
		return parts
	}

	words := strings.Fields(stripped)
	var chunks []string
	for i := 0; i < len(words); i += fallbackChunkWords {
		end := min(i+fallbackChunkWords, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// distributes transcript sentences over speech intervals proportionally to
// interval duration and times one cue per interval that received text
func AlignTranscript(transcript string, intervals []audio.Interval, total float64) []Cue {
	sentences := SentenceTokenize(transcript)
	if len(sentences) == 0 {
		return nil
	}

	if len(intervals) == 0 {
		intervals = []audio.Interval{{Start: 0, Duration: total}}
	}

	speech := audio.TotalDuration(intervals)
	if speech <= 0 {
		speech = total
		if speech == 0 {
			speech = 1
		}
	}

	n := len(sentences)
	allocations := make([][]string, len(intervals))
	idx := 0
	var cumulative float64
	for i, iv := range intervals {
		next := n
		if i < len(intervals)-1 {
			cumulative += iv.Duration / speech * float64(n)
			next = min(max(idx+1, int(math.RoundToEven(cumulative))), n)
		}
		if idx < next {
			allocations[i] = sentences[idx:next]
		}
		idx = max(idx, next)
	}

	var cues []Cue
	for i, iv := range intervals {
		text := strings.TrimSpace(strings.Join(allocations[i], " "))
		if text == "" {
			continue
		}
		start, length := cueTiming(iv)
		cues = append(cues, Cue{
			Text:   text,
			Start:  Round3(start),
			Length: Round3(length),
		})
	}
	return cues
}

func cueTiming(iv audio.Interval) (float64, float64) {
	d := iv.Duration
	if d <= 0 {
		return math.Max(iv.Start, 0), 0.001
	}
	if d < shortInterval {
		return math.Max(iv.Start, 0), d
	}
	length := math.Max(d-math.Min(0.15, d*0.1), minCueLength)
	length = math.Min(length, math.Max(d-cueLeadIn, 0.2))
	return math.Max(iv.Start+cueLeadIn, 0), length
}
