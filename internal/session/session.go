package session

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/mgpai22/headcut/internal/media"
	"github.com/mgpai22/headcut/internal/overlay"
	"github.com/mgpai22/headcut/internal/subtitle"
	"github.com/mgpai22/headcut/internal/timeline"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRendering Status = "rendering"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

var ErrNotFound = errors.New("render session not found")

// persisted render sessions, never deleted automatically
type Store interface {
	// assigns ID and timestamps
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	// newest session of a user, optionally limited to one scenario
	Latest(ctx context.Context, userID int64, scenario string) (*Session, error)
	Close() error
}

type CircleSettings struct {
	Radius     float64 `json:"radius"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	AutoCenter bool    `json:"auto_center"`
}

func DefaultCircleSettings() CircleSettings {
	c := overlay.DefaultCircle()
	return CircleSettings{Radius: c.Radius, CenterX: c.CenterX, CenterY: c.CenterY, AutoCenter: true}
}

func (c CircleSettings) Params() overlay.CircleParams {
	return overlay.CircleParams{Radius: c.Radius, CenterX: c.CenterX, CenterY: c.CenterY}
}

type SubtitleSettings struct {
	Mode  timeline.SubtitleMode `json:"mode"`
	Theme string                `json:"theme"`
	// cues the last render used, replayed on rerender
	Cues []subtitle.Cue `json:"cues,omitempty"`
}

type BookendSettings struct {
	Enabled   bool       `json:"enabled"`
	URL       string     `json:"url,omitempty"`
	Type      media.Type `json:"type,omitempty"`
	Length    float64    `json:"length,omitempty"`
	Templates []string   `json:"templates,omitempty"`
}

// nil when disabled
func (b BookendSettings) Bookend() *timeline.Bookend {
	if !b.Enabled || b.URL == "" {
		return nil
	}
	return &timeline.Bookend{URL: b.URL, Type: b.Type, Length: b.Length, Templates: b.Templates}
}

// uploaded overlay and, for circles, the gate that produced it
type OverlayAsset struct {
	URL    string                `json:"url"`
	Circle *overlay.CircleParams `json:"circle,omitempty"`
}

// stored composition intent of one talking head render
type Session struct {
	ID       string `json:"id"`
	UserID   int64  `json:"user_id"`
	Scenario string `json:"scenario"`

	HeadURL       string `json:"head_url"`
	BackgroundURL string `json:"background_url"`

	Templates       []string         `json:"templates"`
	Subtitles       SubtitleSettings `json:"subtitles"`
	Intro           BookendSettings  `json:"intro"`
	Outro           BookendSettings  `json:"outro"`
	Circle          CircleSettings   `json:"circle"`
	FitTolerance    float64          `json:"fit_tolerance"`
	BackgroundColor string           `json:"background_color,omitempty"`
	BackgroundMode  string           `json:"background_mode,omitempty"`

	Background   media.Meta                     `json:"background_meta"`
	HeadDuration float64                        `json:"head_duration"`
	Overlays     map[overlay.Shape]OverlayAsset `json:"overlays,omitempty"`

	Status    Status            `json:"status"`
	ResultURL string            `json:"result_url,omitempty"`
	ResultKey string            `json:"result_key,omitempty"`
	RenderIDs map[string]string `json:"render_ids,omitempty"`
	Error     string            `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// copy that shares no slices or maps with s
func (s *Session) Clone() *Session {
	c := *s
	c.Templates = slices.Clone(s.Templates)
	c.Subtitles.Cues = slices.Clone(s.Subtitles.Cues)
	c.Intro.Templates = slices.Clone(s.Intro.Templates)
	c.Outro.Templates = slices.Clone(s.Outro.Templates)
	c.Overlays = maps.Clone(s.Overlays)
	c.RenderIDs = maps.Clone(s.RenderIDs)
	return &c
}

type BookendOverride struct {
	Enabled   *bool    `json:"enabled,omitempty"`
	URL       *string  `json:"url,omitempty"`
	Length    *float64 `json:"length,omitempty"`
	Templates []string `json:"templates,omitempty"`
}

type CircleOverride struct {
	Radius     *float64 `json:"radius,omitempty"`
	CenterX    *float64 `json:"center_x,omitempty"`
	CenterY    *float64 `json:"center_y,omitempty"`
	AutoCenter *bool    `json:"auto_center,omitempty"`
}

// partial changes applied on rerender; nil fields keep the stored value
type Overrides struct {
	Templates     []string         `json:"templates,omitempty"`
	SubtitleMode  *string          `json:"subtitle_mode,omitempty"`
	SubtitleTheme *string          `json:"subtitle_theme,omitempty"`
	Intro         *BookendOverride `json:"intro,omitempty"`
	Outro         *BookendOverride `json:"outro,omitempty"`
	Circle        *CircleOverride  `json:"circle,omitempty"`
}

// shallow merge of o over s, returned as a new session
func (s *Session) Merge(o Overrides) *Session {
	m := s.Clone()
	if len(o.Templates) > 0 {
		m.Templates = slices.Clone(o.Templates)
	}
	if o.SubtitleMode != nil {
		m.Subtitles.Mode = timeline.SubtitleMode(*o.SubtitleMode)
	}
	if o.SubtitleTheme != nil {
		m.Subtitles.Theme = *o.SubtitleTheme
	}
	mergeBookend(&m.Intro, o.Intro)
	mergeBookend(&m.Outro, o.Outro)
	if c := o.Circle; c != nil {
		if c.Radius != nil {
			m.Circle.Radius = *c.Radius
		}
		if c.CenterX != nil {
			m.Circle.CenterX = *c.CenterX
		}
		if c.CenterY != nil {
			m.Circle.CenterY = *c.CenterY
		}
		if c.AutoCenter != nil {
			m.Circle.AutoCenter = *c.AutoCenter
		}
	}
	return m
}

func mergeBookend(b *BookendSettings, o *BookendOverride) {
	if o == nil {
		return
	}
	if o.Enabled != nil {
		b.Enabled = *o.Enabled
	}
	if o.URL != nil {
		b.URL = *o.URL
		// type is sniffed again for a new source
		b.Type = ""
	}
	if o.Length != nil {
		b.Length = *o.Length
	}
	if len(o.Templates) > 0 {
		b.Templates = slices.Clone(o.Templates)
	}
}
