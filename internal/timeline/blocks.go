package timeline

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mgpai22/headcut/internal/subtitle"
)

// clips spliced around the composed timeline
type Block struct {
	PrependClips   []Clip `json:"prepend_clips,omitempty" yaml:"prepend_clips,omitempty"`
	AppendClips    []Clip `json:"append_clips,omitempty" yaml:"append_clips,omitempty"`
	AppendOverlays []Clip `json:"append_overlays,omitempty" yaml:"append_overlays,omitempty"`
}

func (b Block) IsEmpty() bool {
	return len(b.PrependClips) == 0 && len(b.AppendClips) == 0 && len(b.AppendOverlays) == 0
}

// seconds taken by the prepended clips
func (b Block) PrependLength() float64 {
	var total float64
	for _, c := range b.PrependClips {
		total += c.LengthOr(0)
	}
	return total
}

// blocks keyed by template name
type Blocks map[string]Block

// reads a YAML or JSON blocks config. an empty path yields no blocks.
func LoadBlocks(path string) (Blocks, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blocks config %s: %w", path, err)
	}
	var blocks Blocks
	if err := yaml.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("invalid blocks config %s: %w", path, err)
	}
	for name, b := range blocks {
		for i, c := range b.PrependClips {
			if c.Length == nil {
				return nil, fmt.Errorf("blocks config %s: %s prepend clip %d has no length", path, name, i)
			}
		}
	}
	return blocks, nil
}

// splices the block into spec. prepended clips shift everything already
// placed; appended clips start at the end of the base content, which is
// base seconds long or measured from the clips track when base <= 0.
// returns the number of clips prepended.
func ApplyBlocks(s *Spec, b Block, base float64) (int, error) {
	if b.IsEmpty() {
		return 0, nil
	}

	var introTotal float64
	if len(b.PrependClips) > 0 {
		intro := make([]Clip, 0, len(b.PrependClips))
		var offset float64
		for i, c := range b.PrependClips {
			if c.Length == nil {
				return 0, fmt.Errorf("prepend clip %d has no length", i)
			}
			if c.Start == nil {
				c.Start = Float(subtitle.Round3(offset))
			}
			intro = append(intro, c)
			offset += *c.Length
		}
		if offset > 0 {
			shiftStarts(s.Clips, offset)
			shiftStarts(s.Overlays, offset)
			subtitle.Shift(s.Subtitles, offset)
		}
		s.Clips = append(intro, s.Clips...)
		introTotal = offset
	}

	if len(b.AppendClips) > 0 {
		baseLength := base
		if baseLength <= 0 {
			baseLength = math.Max(placedEnd(s.Clips)-introTotal, 0)
		}
		var appendOffset float64
		for _, c := range b.AppendClips {
			if c.Start == nil {
				c.Start = Float(subtitle.Round3(introTotal + baseLength + appendOffset))
			}
			appendOffset += c.LengthOr(0)
			s.Clips = append(s.Clips, c)
		}
	}

	for _, c := range b.AppendOverlays {
		if c.Start == nil {
			c.Start = Float(subtitle.Round3(placedEnd(s.Overlays)))
		}
		s.Overlays = append(s.Overlays, c)
	}
	return len(b.PrependClips), nil
}

func shiftStarts(entries []Clip, shift float64) {
	for i := range entries {
		entries[i].Start = Float(subtitle.Round3(entries[i].StartAt() + shift))
	}
}

// end of the entries with a known placement; auto-length entries count
// from their start only
func placedEnd(entries []Clip) float64 {
	var end float64
	for _, c := range entries {
		switch {
		case c.Length != nil:
			end = math.Max(end, c.StartAt()+*c.Length)
		case c.AutoLength:
			end = math.Max(end, c.StartAt())
		}
	}
	return end
}
