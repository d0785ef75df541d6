package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	ffmpegbin "github.com/mgpai22/headcut/internal/ffmpeg"
)

// probes local media files
type Prober interface {
	Probe(ctx context.Context, path string) (Meta, error)
}

// ffprobe backed Prober
type FFprobe struct {
	// binary path, resolved lazily when empty
	Path string
}

func NewFFprobe() *FFprobe {
	return &FFprobe{}
}

// JSON output from ffprobe
type ffprobeOutput struct {
	Streams []struct {
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		Duration string `json:"duration"`
		FPS      string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFprobe) binary() (string, error) {
	if p.Path != "" {
		return p.Path, nil
	}
	return ffmpegbin.FFprobePath()
}

// metadata of a local file or URL. local stills are decoded before ffprobe runs.
func (p *FFprobe) Probe(ctx context.Context, path string) (Meta, error) {
	if !IsRemote(path) {
		if _, err := os.Stat(path); err != nil {
			return Meta{}, &ProbeError{Path: path, Err: err}
		}
		if meta, ok := probeImage(path); ok {
			return meta, nil
		}
	}

	bin, err := p.binary()
	if err != nil {
		return Meta{}, &ProbeError{Path: path, Err: err}
	}

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,duration,r_frame_rate:format=duration",
		"-of", "json",
		path,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Meta{}, &ProbeError{Path: path, Err: err}
		}
		return Meta{}, &ProbeError{Path: path, Err: fmt.Errorf("ffprobe failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))}
	}

	meta, err := parseProbeOutput(out.Bytes())
	if err != nil {
		return Meta{}, &ProbeError{Path: path, Err: err}
	}
	return meta, nil
}

// maps ffprobe JSON to Meta: stream duration first, container duration second
func parseProbeOutput(data []byte) (Meta, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return Meta{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return Meta{}, errors.New("no video stream")
	}
	stream := probe.Streams[0]
	if stream.Width <= 0 || stream.Height <= 0 {
		return Meta{}, fmt.Errorf("invalid dimensions %dx%d", stream.Width, stream.Height)
	}

	duration := parseSeconds(stream.Duration)
	if duration <= 0 {
		duration = parseSeconds(probe.Format.Duration)
	}

	meta := Meta{
		Width:    stream.Width,
		Height:   stream.Height,
		Duration: duration,
		FPS:      parseRate(stream.FPS),
		Type:     TypeVideo,
	}
	if meta.Duration < minFrameSeconds {
		meta.Type = TypeImage
		meta.Duration = 0
		meta.FPS = 0
	}
	return meta, nil
}

func parseSeconds(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// "30000/1001" style frame rates
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseSeconds(s)
	}
	n, d := parseSeconds(num), parseSeconds(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func probeImage(path string) (Meta, bool) {
	if IsRemote(path) {
		return Meta{}, false
	}
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Meta{}, false
	}
	return Meta{Width: cfg.Width, Height: cfg.Height, Type: TypeImage}, true
}

// duration in seconds of a (possibly remote) video source
func (p *FFprobe) Duration(ctx context.Context, src string) (float64, error) {
	meta, err := p.Probe(ctx, src)
	if err != nil {
		return 0, err
	}
	return meta.Duration, nil
}
