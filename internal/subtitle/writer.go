package subtitle

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// writes cues as SubRip, WebVTT or JSON depending on the path extension
func Write(path string, cues []Cue) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return WriteJSON(path, cues)
	}
	format, ok := FormatFromExtension(path)
	if !ok {
		return fmt.Errorf("unsupported subtitle format: %s", filepath.Ext(path))
	}
	switch format {
	case FormatVTT:
		return WriteVTT(path, cues)
	default:
		return WriteSRT(path, cues)
	}
}

// writes the cues to an SRT file
func WriteSRT(path string, cues []Cue) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var sb strings.Builder
	for i, cue := range cues {
		// index (1-based)
		fmt.Fprintf(&sb, "%d\n", i+1)

		// timestamps: 00:00:00,000 --> 00:00:00,000
		fmt.Fprintf(&sb, "%s --> %s\n",
			formatTimestamp(cue.Start, ','),
			formatTimestamp(cue.End(), ','))

		sb.WriteString(cue.Text)
		sb.WriteString("\n\n")
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// writes the cues to a VTT file
func WriteVTT(path string, cues []Cue) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")

	for i, cue := range cues {
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n",
			formatTimestamp(cue.Start, '.'),
			formatTimestamp(cue.End(), '.'))
		sb.WriteString(cue.Text)
		sb.WriteString("\n\n")
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// writes {"subtitles": [...]}, the layout LoadFile reads back
func WriteJSON(path string, cues []Cue) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if cues == nil {
		cues = []Cue{}
	}
	data, err := json.MarshalIndent(map[string][]Cue{"subtitles": cues}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func formatTimestamp(seconds float64, sep rune) string {
	d := time.Duration(math.Round(seconds*1000)) * time.Millisecond
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, sep, millis)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
