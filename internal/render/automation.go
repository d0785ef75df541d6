package render

import (
	"context"
	"fmt"
	"math"

	"github.com/mgpai22/headcut/internal/timeline"
)

// source duration lookup for auto-length resolution
type DurationProber interface {
	Duration(ctx context.Context, src string) (float64, error)
}

// resolves auto_length and match_length_to across clips and overlays.
// auto-length entries take their playable source duration; matched
// entries take the target's length and a speed that fits their source into it.
func ApplyAutomation(ctx context.Context, spec *timeline.Spec, prober DurationProber) error {
	var entries []*timeline.Clip
	for i := range spec.Clips {
		entries = append(entries, &spec.Clips[i])
	}
	for i := range spec.Overlays {
		entries = append(entries, &spec.Overlays[i])
	}
	if len(entries) == 0 {
		return nil
	}

	durations := make(map[string]float64)
	probe := func(c *timeline.Clip) (float64, bool, error) {
		if c.Src == "" || c.AssetType() != "video" {
			return 0, false, nil
		}
		if d, ok := durations[c.Src]; ok {
			return d, true, nil
		}
		if prober == nil {
			return 0, false, fmt.Errorf("no duration prober for %s", c.Src)
		}
		d, err := prober.Duration(ctx, c.Src)
		if err != nil {
			return 0, false, fmt.Errorf("failed to probe duration of %s: %w", c.Src, err)
		}
		durations[c.Src] = d
		return d, true, nil
	}

	labels := make(map[string]*timeline.Clip)
	for _, c := range entries {
		if c.Label != "" {
			labels[c.Label] = c
		}
	}

	playable := make(map[*timeline.Clip]float64)
	for _, c := range entries {
		if !c.AutoLength && c.Length != nil && c.MatchLengthTo == "" {
			continue
		}
		d, ok, err := probe(c)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		p := math.Max(d-c.TrimAt(), 0)
		playable[c] = p
		if c.AutoLength || c.Length == nil {
			c.Length = timeline.Float(p)
		}
	}

	for _, c := range entries {
		if c.MatchLengthTo == "" {
			continue
		}
		target, ok := labels[c.MatchLengthTo]
		if !ok {
			return fmt.Errorf("match_length_to references unknown label %q", c.MatchLengthTo)
		}

		if target.Length == nil {
			d, ok, err := probe(target)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("unable to determine length of %q", c.MatchLengthTo)
			}
			if p, known := playable[target]; known {
				d = p
			}
			target.Length = timeline.Float(d)
		}
		targetLength := *target.Length

		source, ok := playable[c]
		if !ok || targetLength <= 0 {
			return fmt.Errorf("unable to compute speed for %s", c.Src)
		}
		c.Speed = timeline.Float(source / targetLength)
		c.Length = timeline.Float(targetLength)
	}
	return nil
}
