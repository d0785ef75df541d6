package render

import (
	"context"
	"fmt"

	"github.com/mgpai22/headcut/internal/logging"
	"github.com/mgpai22/headcut/internal/timeline"
)

// outcome of one spec render
type Result struct {
	Status     string  `json:"status"`
	ID         string  `json:"id"`
	URL        string  `json:"url,omitempty"`
	Poster     string  `json:"poster,omitempty"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	RenderTime float64 `json:"render_time,omitempty"`
	Billable   float64 `json:"billable_seconds,omitempty"`
	// set when the caller did not wait for completion
	PollURL string `json:"poll_url,omitempty"`
}

// submits composed specs and follows them to completion
type Orchestrator struct {
	Client *Client
	Prober DurationProber
	Logger *logging.Logger
}

func NewOrchestrator(client *Client, prober DurationProber, log *logging.Logger) *Orchestrator {
	return &Orchestrator{Client: client, Prober: prober, Logger: log}
}

// loads, automates and renders the spec at path
func (o *Orchestrator) RenderSpec(ctx context.Context, path string, wait bool) (Result, error) {
	spec, err := timeline.LoadSpec(path)
	if err != nil {
		return Result{}, err
	}
	return o.Render(ctx, spec, wait)
}

func (o *Orchestrator) Render(ctx context.Context, spec *timeline.Spec, wait bool) (Result, error) {
	log := o.Logger.Or()

	if err := ApplyAutomation(ctx, spec, o.Prober); err != nil {
		return Result{}, fmt.Errorf("automation: %w", err)
	}
	payload, err := BuildPayload(spec)
	if err != nil {
		return Result{}, err
	}

	id, err := o.Client.Submit(ctx, payload)
	if err != nil {
		return Result{}, err
	}
	log.Infow("render submitted", "render_id", id)

	if !wait {
		st, err := o.Client.Status(ctx, id)
		if err != nil {
			return Result{}, err
		}
		return Result{Status: st.Status, ID: id, PollURL: o.Client.PollURL(id)}, nil
	}

	st, err := o.Client.Wait(ctx, id)
	if err != nil {
		return Result{}, err
	}
	log.Infow("render done", "render_id", id, "url", st.URL)
	return Result{
		Status:     st.Status,
		ID:         id,
		URL:        st.URL,
		Poster:     st.Poster,
		Thumbnail:  st.Thumbnail,
		Duration:   st.Duration,
		RenderTime: st.RenderTime,
		Billable:   st.Billable,
	}, nil
}
