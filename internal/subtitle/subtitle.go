package subtitle

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// offset relative to the anchor position, in frame fractions
type Offset struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// timed caption placed on the subtitle track
type Cue struct {
	Text     string   `json:"text" yaml:"text"`
	Start    float64  `json:"start" yaml:"start"`
	Length   float64  `json:"length" yaml:"length"`
	Position string   `json:"position,omitempty" yaml:"position,omitempty"`
	Offset   *Offset  `json:"offset,omitempty" yaml:"offset,omitempty"`
	Width    *float64 `json:"width,omitempty" yaml:"width,omitempty"`
}

func (c Cue) End() float64 {
	return c.Start + c.Length
}

// latest cue end, 0 for no cues
func End(cues []Cue) float64 {
	var end float64
	for _, c := range cues {
		end = math.Max(end, c.End())
	}
	return end
}

// shifts every cue start by delta seconds
func Shift(cues []Cue, delta float64) {
	for i := range cues {
		cues[i].Start = Round3(cues[i].Start + delta)
	}
}

// supported export formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// subtitle format based on file extension
func FormatFromExtension(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return FormatSRT, true
	case ".vtt":
		return FormatVTT, true
	default:
		return "", false
	}
}

// malformed subtitles file
type FormatError struct {
	Path  string
	Index int // entry index, -1 for file level problems
	Msg   string
	Err   error
}

func (e *FormatError) Error() string {
	msg := e.Msg
	if e.Index >= 0 {
		msg = fmt.Sprintf("entry %d: %s", e.Index, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid subtitles %s: %s: %v", e.Path, msg, e.Err)
	}
	return fmt.Sprintf("invalid subtitles %s: %s", e.Path, msg)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// rounds half to even at millisecond precision
func Round3(v float64) float64 {
	return math.RoundToEven(v*1000) / 1000
}
