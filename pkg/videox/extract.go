package videox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cyclopcam/fieldsight/pkg/shell"
)

var videoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm", ".m4v"}
var frameExtensions = []string{".jpg", ".jpeg", ".png"}

// FramePattern is the ffmpeg output pattern of ExtractFrames. Frame numbers start at 1.
const FramePattern = "frame_%06d.jpg"

// IsVideoFile returns true if the file extension is one of the video containers we decode
func IsVideoFile(filename string) bool {
	return slices.Contains(videoExtensions, strings.ToLower(filepath.Ext(filename)))
}

// IsFrameFile returns true if the file is an image that we can run inference on
func IsFrameFile(filename string) bool {
	return slices.Contains(frameExtensions, strings.ToLower(filepath.Ext(filename)))
}

// ListFrames returns the image files directly inside dir, sorted by name.
// For the output of ExtractFrames (or any zero-padded sequence) this is frame order.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	frames := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && IsFrameFile(e.Name()) {
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("No image files in %v", dir)
	}
	return frames, nil
}

type ExtractOptions struct {
	FFmpeg    string  // ffmpeg executable. Default "ffmpeg".
	FPS       float64 // If greater than zero, resample the video to this frame rate
	MaxHeight int     // If greater than zero, scale frames down so that they are no taller than this
}

// ExtractFrames decodes a video file into JPEG frames inside dstDir, and returns them in order
func ExtractFrames(ctx context.Context, srcFilename, dstDir string, opt ExtractOptions) ([]string, error) {
	if _, err := os.Stat(srcFilename); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return nil, err
	}
	ffmpeg := opt.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	args := []string{
		"-hide_banner",
		"-loglevel",
		"error",
		"-i",
		srcFilename,
	}
	filters := []string{}
	if opt.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%v", opt.FPS))
	}
	if opt.MaxHeight > 0 {
		filters = append(filters, fmt.Sprintf("scale=-2:'min(%v,ih)'", opt.MaxHeight))
	}
	if len(filters) != 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	args = append(args,
		"-q:v",
		"2",
		filepath.Join(dstDir, FramePattern),
	)
	if _, err := shell.Run(ctx, ffmpeg, args...); err != nil {
		var verbose shell.ExitErrorVerbose
		if errors.As(err, &verbose) {
			return nil, fmt.Errorf("Failed to decode %v: %w", srcFilename, err)
		}
		return nil, fmt.Errorf("Unable to run '%v' (%w)", ffmpeg, err)
	}
	return ListFrames(dstDir)
}
