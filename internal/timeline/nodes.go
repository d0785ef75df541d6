package timeline

import (
	"fmt"
	"math"

	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/subtitle"
)

// clip addressed by p, as a pointer into the spec
func (s *Spec) Node(p NodePath) (*Clip, error) {
	var track []Clip
	switch p.Track {
	case TrackClips:
		track = s.Clips
	case TrackOverlays:
		track = s.Overlays
	default:
		return nil, fmt.Errorf("node %s: unknown track", p)
	}
	if p.Index < 0 || p.Index >= len(track) {
		return nil, fmt.Errorf("node %s: index out of range (%d entries)", p, len(track))
	}
	return &track[p.Index], nil
}

// copies of the clips at paths
func (s *Spec) Nodes(paths []NodePath) ([]Clip, error) {
	clips := make([]Clip, 0, len(paths))
	for _, p := range paths {
		c, err := s.Node(p)
		if err != nil {
			return nil, err
		}
		clips = append(clips, *c)
	}
	return clips, nil
}

// fields written into every addressed node; zero values are left alone
type NodeUpdate struct {
	URL    string
	Fit    media.Fit
	Type   media.Type
	Length *float64
}

// substitutes source, fit and asset type into the nodes at paths.
// image assets lose their video-only fields.
func UpdateNodes(s *Spec, paths []NodePath, u NodeUpdate) error {
	for _, p := range paths {
		c, err := s.Node(p)
		if err != nil {
			return err
		}
		c.Src = u.URL
		if u.Fit != "" {
			c.Fit = string(u.Fit)
		}
		if u.Type != "" {
			c.Type = string(u.Type)
			if u.Type == media.TypeImage {
				c.Trim = nil
				c.AutoLength = false
				c.MatchLengthTo = ""
				c.Speed = nil
			}
		}
		if u.Length != nil {
			c.Length = Float(subtitle.Round3(math.Max(*u.Length, 0.1)))
		}
	}
	return nil
}

// latest end over entries. auto-length entries end at target, entries with
// no length are estimated from target minus their trim.
func TrackEnd(entries []Clip, target float64) float64 {
	var end float64
	for _, c := range entries {
		start := c.StartAt()
		var candidate float64
		switch {
		case c.Length != nil:
			candidate = start + math.Max(*c.Length, 0)
		case c.AutoLength || c.MatchLengthTo != "":
			candidate = math.Max(target, start)
		default:
			fallback := math.Max(target-start, 0)
			candidate = start + math.Max(fallback-c.TrimAt(), 0)
		}
		end = math.Max(end, candidate)
	}
	return end
}

func SubtitlesEnd(cues []subtitle.Cue) float64 {
	var end float64
	for _, c := range cues {
		end = math.Max(end, c.Start+math.Max(c.Length, 0))
	}
	return end
}

// pins every auto-length or length-matched entry to end at target
func LockAutoLength(entries []Clip, target float64) {
	for i := range entries {
		c := &entries[i]
		if !c.AutoLength && c.MatchLengthTo == "" {
			continue
		}
		desired := math.Max(target-c.StartAt(), 0)
		c.Length = Float(subtitle.Round3(math.Max(desired, 0.001)))
		c.AutoLength = false
		c.MatchLengthTo = ""
		c.Speed = nil
	}
}
