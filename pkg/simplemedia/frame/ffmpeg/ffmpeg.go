// Package ffmpeg captures still frames from video payloads by shelling out to
// the ffmpeg and ffprobe binaries.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Config locates the binaries and bounds each invocation.
type Config struct {
	FFmpegPath  string        // defaults to "ffmpeg"
	FFprobePath string        // defaults to "ffprobe"
	Timeout     time.Duration // per command; defaults to 30s
	TempDir     string        // defaults to os.TempDir()
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Extractor implements simplemedia.FrameExtractor.
type Extractor struct {
	ffmpeg  string
	ffprobe string
	timeout time.Duration
	tempDir string
	run     runFunc
}

// New returns an Extractor for cfg. Missing binaries are reported when a clip
// is opened, not here.
func New(cfg Config) *Extractor {
	e := &Extractor{
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		timeout: cfg.Timeout,
		tempDir: cfg.TempDir,
		run:     runCommand,
	}
	if e.ffmpeg == "" {
		e.ffmpeg = "ffmpeg"
	}
	if e.ffprobe == "" {
		e.ffprobe = "ffprobe"
	}
	if e.timeout <= 0 {
		e.timeout = 30 * time.Second
	}
	return e
}

// Available reports whether both binaries can be found.
func (e *Extractor) Available() bool {
	if _, err := exec.LookPath(e.ffmpeg); err != nil {
		return false
	}
	_, err := exec.LookPath(e.ffprobe)
	return err == nil
}

type clip struct {
	path     string
	duration time.Duration
}

func (c *clip) Duration() time.Duration { return c.duration }

func (c *clip) Close() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// OpenClip spools the asset to a temporary file and probes its duration.
func (e *Extractor) OpenClip(ctx context.Context, asset simplemedia.Asset) (simplemedia.Clip, error) {
	r, err := asset.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	f, err := os.CreateTemp(e.tempDir, "clip-*"+extension(asset.Ref().Key))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	c := &clip{path: f.Name()}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		c.Close()
		return nil, fmt.Errorf("failed to spool clip: %w", err)
	}
	if err := f.Close(); err != nil {
		c.Close()
		return nil, err
	}

	c.duration, err = e.probeDuration(ctx, c.path)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: %w", simplemedia.ErrDecode, err)
	}
	return c, nil
}

// FrameAt decodes the frame at offset.
func (e *Extractor) FrameAt(ctx context.Context, c simplemedia.Clip, offset time.Duration) (image.Image, error) {
	local, ok := c.(*clip)
	if !ok {
		return nil, fmt.Errorf("%w: clip was not opened by this extractor", simplemedia.ErrDecode)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	out, err := e.run(ctx, e.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(offset),
		"-i", local.path,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "png", "-")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", simplemedia.ErrDecode, err)
	}
	if len(out) == 0 {
		return nil, simplemedia.ErrEmptyClip
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", simplemedia.ErrDecode, err)
	}
	return img, nil
}

func (e *Extractor) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	out, err := e.run(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	return parseDuration(string(out))
}

func (e *Extractor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s not found in PATH", name)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, errors.New(msg)
	}
	return out.Bytes(), nil
}

// parseDuration reads ffprobe's seconds output. "N/A" yields zero.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected duration %q", raw)
	}
	if seconds < 0 {
		return 0, nil
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func extension(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 && !strings.ContainsRune(key[i:], '/') {
		return key[i:]
	}
	return ""
}

var _ simplemedia.FrameExtractor = (*Extractor)(nil)
