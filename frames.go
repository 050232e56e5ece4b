package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// FrameSampler turns a video URL into uploaded still frames for a vision review
type FrameSampler interface {
	Sample(ctx context.Context, videoURL string, durationSeconds int) ([]types.File, error)
}

// FFmpegSampler downloads a video, extracts evenly spaced JPEG frames with ffmpeg
// and uploads them to Anthropic.
type FFmpegSampler struct {
	apiKey string
	frames int
	client *http.Client
	upload func(path, apiKey string) (string, error)
}

// NewFFmpegSampler creates a sampler extracting the given number of frames
func NewFFmpegSampler(apiKey string, frames int) *FFmpegSampler {
	return &FFmpegSampler{
		apiKey: apiKey,
		frames: frames,
		client: &http.Client{},
		upload: func(path, apiKey string) (string, error) {
			file, err := anthropic.UploadFile(path, apiKey)
			if err != nil {
				return "", err
			}
			return file.ID, nil
		},
	}
}

// Sample implements FrameSampler
func (s *FFmpegSampler) Sample(ctx context.Context, videoURL string, durationSeconds int) ([]types.File, error) {
	dir, err := os.MkdirTemp("", "frames-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary directory: %w", err)
	}
	defer os.RemoveAll(dir)

	videoPath := filepath.Join(dir, "video.mp4")
	if err := s.download(ctx, videoURL, videoPath); err != nil {
		return nil, err
	}

	paths, err := s.extract(ctx, videoPath, dir, durationSeconds)
	if err != nil {
		return nil, err
	}

	files := make([]types.File, 0, len(paths))
	for _, p := range paths {
		id, err := s.upload(p, s.apiKey)
		if err != nil {
			return nil, fmt.Errorf("uploading frame %s: %w", filepath.Base(p), err)
		}
		files = append(files, types.File{ID: id})
	}
	return files, nil
}

func (s *FFmpegSampler) download(ctx context.Context, videoURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, URL: videoURL}
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating video file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing video file: %w", err)
	}
	return nil
}

func (s *FFmpegSampler) extract(ctx context.Context, videoPath, dir string, durationSeconds int) ([]string, error) {
	if durationSeconds <= 0 {
		durationSeconds = 10
	}
	fps := float64(s.frames) / float64(durationSeconds)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%s,scale=720:-2", strconv.FormatFloat(fps, 'f', 4, 64)),
		"-frames:v", strconv.Itoa(s.frames),
		"-q:v", "3",
		filepath.Join(dir, "frame-%02d.jpg"),
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("extracting frames: %w: %s", err, output)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "frame-*.jpg"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames extracted from video")
	}
	sort.Strings(paths)
	return paths, nil
}
