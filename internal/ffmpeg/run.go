package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// runs a compiled ffmpeg-go stream, killing the process when ctx is done.
// stderr is captured and returned so callers can parse filter output.
func Run(ctx context.Context, stream *ffmpeggo.Stream) (string, error) {
	path, err := FFmpegPath()
	if err != nil {
		return "", err
	}

	var stderr bytes.Buffer
	cmd := stream.SetFfmpegPath(path).Compile()
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return stderr.String(), fmt.Errorf("ffmpeg failed: %w: %s", err, lastLines(stderr.String(), 5))
		}
		return stderr.String(), nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return stderr.String(), ctx.Err()
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
