// Package ffmpeg wraps the ffmpeg and ffprobe binaries for the media
// operations the pipeline needs: probing duration, uniform frame extraction,
// audio re-encoding, and DASH stream merging.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	probeTimeout   = 30 * time.Second
	extractTimeout = 600 * time.Second
	mergeTimeout   = 300 * time.Second
)

// Runner invokes ffmpeg/ffprobe found on PATH.
type Runner struct {
	ffmpeg  string
	ffprobe string
}

// NewRunner resolves both binaries. Missing binaries are an error up front
// rather than a per-stage surprise.
func NewRunner() (*Runner, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found on PATH: %w", err)
	}
	return &Runner{ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

// NewRunnerWith builds a runner with explicit binary paths, for tests.
func NewRunnerWith(ffmpegPath, ffprobePath string) *Runner {
	return &Runner{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (r *Runner) run(ctx context.Context, timeout time.Duration, bin string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s timed out after %s", bin, timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", bin, msg)
	}
	return stdout.String(), nil
}

// ProbeDuration returns the container duration of a media file in seconds.
func (r *Runner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := r.run(ctx, probeTimeout, r.ffprobe, ProbeDurationArgs(path)...)
	if err != nil {
		return 0, err
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(out), err)
	}
	return dur, nil
}

// ExtractFrames writes one scaled PNG per interval into outPattern
// (a printf pattern such as frames_passA/frame_%06d.png).
func (r *Runner) ExtractFrames(ctx context.Context, video, outPattern string, intervalSec, scaleWidth int) error {
	_, err := r.run(ctx, extractTimeout, r.ffmpeg, ExtractFramesArgs(video, outPattern, intervalSec, scaleWidth)...)
	return err
}

// ExtractAudio re-encodes the video's audio track to mono 16 kHz AAC at the
// given bitrate.
func (r *Runner) ExtractAudio(ctx context.Context, video, out string, bitrateKbps int) error {
	_, err := r.run(ctx, extractTimeout, r.ffmpeg, ExtractAudioArgs(video, out, bitrateKbps)...)
	return err
}

// Merge remuxes separate video and audio streams into one container without
// re-encoding.
func (r *Runner) Merge(ctx context.Context, videoIn, audioIn, out string) error {
	_, err := r.run(ctx, mergeTimeout, r.ffmpeg, MergeArgs(videoIn, audioIn, out)...)
	return err
}

// ProbeDurationArgs builds the ffprobe argument list for duration probing.
func ProbeDurationArgs(path string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
}

// ExtractFramesArgs builds the ffmpeg argument list for uniform frame
// extraction. The scale filter caps width while keeping aspect ratio and an
// even height.
func ExtractFramesArgs(video, outPattern string, intervalSec, scaleWidth int) []string {
	vf := fmt.Sprintf("fps=1/%d,scale='min(%d,iw):-2'", intervalSec, scaleWidth)
	return []string{
		"-i", video,
		"-vf", vf,
		"-f", "image2",
		"-y", outPattern,
	}
}

// ExtractAudioArgs builds the ffmpeg argument list for ASR-ready audio.
func ExtractAudioArgs(video, out string, bitrateKbps int) []string {
	return []string{
		"-i", video,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", bitrateKbps),
		"-y", out,
	}
}

// MergeArgs builds the ffmpeg argument list for a copy-codec remux.
func MergeArgs(videoIn, audioIn, out string) []string {
	return []string{
		"-i", videoIn,
		"-i", audioIn,
		"-c", "copy",
		"-y", out,
	}
}
