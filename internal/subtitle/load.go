package subtitle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// loads manual subtitles. .srt and .vtt files are parsed as timed text,
// anything else as a JSON list of cues or an object holding one under
// "subtitles" or "cues".
func LoadFile(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FormatError{Path: path, Index: -1, Msg: "cannot read file", Err: err}
	}

	if format, ok := FormatFromExtension(path); ok {
		cues, err := parseTimedText(bytes.NewReader(data), format)
		if err != nil {
			return nil, &FormatError{Path: path, Index: -1, Msg: "cannot parse " + string(format), Err: err}
		}
		return cues, nil
	}
	return parseJSONCues(path, data)
}

func parseJSONCues(path string, data []byte) ([]Cue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, &FormatError{Path: path, Index: -1, Msg: "invalid JSON", Err: err}
	}

	if obj, ok := root.(map[string]any); ok {
		if v, found := obj["subtitles"]; found {
			root = v
		} else if v, found := obj["cues"]; found {
			root = v
		}
	}

	list, ok := root.([]any)
	if !ok {
		return nil, &FormatError{Path: path, Index: -1, Msg: "expected an array of cue objects"}
	}

	var cues []Cue
	for i, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, &FormatError{Path: path, Index: i, Msg: "must be an object"}
		}

		text := strings.TrimSpace(stringValue(entry["text"]))
		if text == "" {
			continue
		}

		start := 0.0
		if v, found := entry["start"]; found {
			f, ok := floatValue(v)
			if !ok {
				return nil, &FormatError{Path: path, Index: i, Msg: "invalid start"}
			}
			start = f
		}

		var length float64
		if v, found := entry["length"]; found {
			f, ok := floatValue(v)
			if !ok {
				return nil, &FormatError{Path: path, Index: i, Msg: "invalid length"}
			}
			length = f
		} else if v, found := entry["end"]; found {
			end, ok := floatValue(v)
			if !ok {
				return nil, &FormatError{Path: path, Index: i, Msg: "invalid end"}
			}
			length = max(end-start, 0)
		} else {
			return nil, &FormatError{Path: path, Index: i, Msg: "needs length or end"}
		}

		if length <= 0 {
			continue
		}

		cue := Cue{Text: text, Start: start, Length: length}
		if pos := stringValue(entry["position"]); pos != "" {
			cue.Position = pos
		}
		if v, found := entry["offset"]; found && v != nil {
			off, ok := offsetValue(v)
			if !ok {
				return nil, &FormatError{Path: path, Index: i, Msg: "invalid offset"}
			}
			cue.Offset = off
		}
		if v, found := entry["width"]; found && v != nil {
			w, ok := floatValue(v)
			if !ok {
				return nil, &FormatError{Path: path, Index: i, Msg: "invalid width"}
			}
			if w != 0 {
				cue.Width = &w
			}
		}
		cues = append(cues, cue)
	}
	return cues, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// numbers and numeric strings
func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func offsetValue(v any) (*Offset, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	var off Offset
	if x, found := obj["x"]; found {
		if off.X, ok = floatValue(x); !ok {
			return nil, false
		}
	}
	if y, found := obj["y"]; found {
		if off.Y, ok = floatValue(y); !ok {
			return nil, false
		}
	}
	return &off, true
}

var (
	// hh:mm:ss,mmm (srt) or hh:mm:ss.mmm / mm:ss.mmm (vtt)
	timingRegex = regexp.MustCompile(
		`^\s*((?:\d+:)?\d{2}:\d{2}[,.]\d{3})\s*-->\s*((?:\d+:)?\d{2}:\d{2}[,.]\d{3})`,
	)
)

func parseTimedText(r io.Reader, format Format) ([]Cue, error) {
	scanner := bufio.NewScanner(r)

	var (
		cues      []Cue
		current   *Cue
		textLines []string
		lineNum   int
	)

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			if current.Length > 0 {
				cues = append(cues, *current)
			}
		}
		current = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
			if format == FormatVTT && strings.HasPrefix(strings.TrimSpace(line), "WEBVTT") {
				continue
			}
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		if format == FormatVTT && current == nil &&
			(strings.HasPrefix(trimmed, "NOTE") || strings.HasPrefix(trimmed, "STYLE")) {
			for scanner.Scan() {
				lineNum++
				if strings.TrimSpace(scanner.Text()) == "" {
					break
				}
			}
			continue
		}

		if m := timingRegex.FindStringSubmatch(line); m != nil {
			flush()
			start, err := parseTimestamp(m[1])
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := parseTimestamp(m[2])
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current = &Cue{
				Start:  Round3(start.Seconds()),
				Length: Round3(max(end-start, 0).Seconds()),
			}
			continue
		}

		// cue identifiers precede the timing line
		if current == nil {
			continue
		}
		textLines = append(textLines, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", format, err)
	}
	return cues, nil
}

func parseTimestamp(ts string) (time.Duration, error) {
	ts = strings.Replace(ts, ",", ".", 1)
	parts := strings.Split(ts, ":")
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(math.Round(sec*1000))*time.Millisecond, nil
}
