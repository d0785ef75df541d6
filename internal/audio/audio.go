package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/headcut/internal/ffmpeg"
)

// settings for audio compression
type CompressionOptions struct {
	Format     string // Output format (mp3, aac)
	SampleRate int    // Sample rate in Hz
	Channels   int    // Number of channels (1=mono, 2=stereo)
	Bitrate    string // Bitrate (e.g., "64k", "128k")
}

// defaults for transcription uploads
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

// re-encodes the audio track of a media file for speech-to-text upload
func Compress(
	ctx context.Context,
	inputPath, outputPath string,
	opts CompressionOptions,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	kwargs := ffmpeg.KwArgs{
		"vn": "",
		"ar": opts.SampleRate,
		"ac": opts.Channels,
	}
	switch opts.Format {
	case "aac":
		kwargs["acodec"] = "aac"
	default:
		kwargs["acodec"] = "libmp3lame"
	}
	if opts.Bitrate != "" {
		kwargs["b:a"] = opts.Bitrate
	}

	stream := ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput()
	if _, err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	return nil
}

// copies the audio track out of a video without re-encoding
func ExtractTrack(ctx context.Context, videoPath, outputPath string) error {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("video file not found: %s", videoPath)
	}

	stream := ffmpeg.Input(videoPath).
		Output(outputPath, ffmpeg.KwArgs{"vn": "", "acodec": "copy"}).
		OverWriteOutput()
	if _, err := ffmpegbin.Run(ctx, stream); err != nil {
		return fmt.Errorf("audio extraction failed: %w", err)
	}
	return nil
}

// container extension that can hold a copied audio stream of the given source
func TrackExtension(sourcePath string) string {
	switch strings.ToLower(filepath.Ext(sourcePath)) {
	case ".webm", ".mkv":
		return ".mka"
	default:
		return ".m4a"
	}
}
