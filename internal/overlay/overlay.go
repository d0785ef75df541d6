package overlay

import (
	"fmt"
	"strings"
	"time"
)

// cut-out shape of the talking head layer
type Shape string

const (
	ShapeRect   Shape = "rect"
	ShapeCircle Shape = "circle"
)

func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case ShapeRect:
		return ShapeRect, nil
	case ShapeCircle:
		return ShapeCircle, nil
	default:
		return "", fmt.Errorf("unsupported overlay shape: %q", s)
	}
}

// alpha-capable output container
type Container string

const (
	ContainerMOV  Container = "mov"
	ContainerWebM Container = "webm"
)

func (c Container) Extension() string {
	if c == ContainerWebM {
		return ".webm"
	}
	return ".mov"
}

// ingest upload could not be requested or transferred
type AssetUploadError struct {
	Path string
	Err  error
}

func (e *AssetUploadError) Error() string {
	return fmt.Sprintf("failed to upload overlay %s: %v", e.Path, e.Err)
}

func (e *AssetUploadError) Unwrap() error { return e.Err }

// uploaded asset never became publicly reachable
type AssetNotReadyError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *AssetNotReadyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("asset %s not ready: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("asset %s was not accessible within %s", e.URL, e.Timeout)
}

func (e *AssetNotReadyError) Unwrap() error { return e.Err }
