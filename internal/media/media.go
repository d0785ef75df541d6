package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// coarse asset type as understood by the renderer
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

// frame length under which a probed duration is treated as a still
const minFrameSeconds = 1.0 / 25.0

// probed source metadata
type Meta struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
	FPS      float64 `json:"fps,omitempty"`
	Type     Type    `json:"asset_type"`
}

func (m Meta) AspectRatio() float64 {
	if m.Height == 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

func (m Meta) IsImage() bool {
	return m.Type == TypeImage
}

// ProbeError reports a missing metadata tool or an unreadable input
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// AssetDownloadError reports a failed source download
type AssetDownloadError struct {
	URL string
	Err error
}

func (e *AssetDownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *AssetDownloadError) Unwrap() error { return e.Err }

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
}

var videoExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".webm": true,
	".mkv":  true,
	".avi":  true,
	".mpg":  true,
	".mpeg": true,
}

// asset type from a file extension, empty when unknown
func TypeFromExtension(path string) Type {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return TypeImage
	case videoExts[ext]:
		return TypeVideo
	default:
		return ""
	}
}

func typeFromContentType(ct string) Type {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "image"):
		return TypeImage
	case strings.Contains(ct, "video"):
		return TypeVideo
	default:
		return ""
	}
}
