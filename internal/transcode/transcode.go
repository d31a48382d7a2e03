// Package transcode drives the external encoder that converts a scratch WAV
// file to M4A, with optional two-pass loudness normalization (spec §4.4).
package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"time"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/errs"
	"github.com/rs/zerolog"
)

// encoderAvailable caches whether ffmpeg is in PATH (checked once at startup,
// the way preprocess.go caches sox availability).
var encoderAvailable *bool

// CheckEncoder checks whether ffmpeg is available in PATH.
func CheckEncoder() bool {
	if encoderAvailable != nil {
		return *encoderAvailable
	}
	_, err := exec.LookPath("ffmpeg")
	avail := err == nil
	encoderAvailable = &avail
	return avail
}

// Tags are the metadata fields embedded in the encoded M4A (spec §4.4).
type Tags struct {
	Album   string
	Artist  string
	Date    time.Time // formatted ISO-8601 UTC
	Genre   string
	Title   string
	Comment string // frequency/signal/noise/length summary
}

// Options configures a single transcode invocation.
type Options struct {
	SampleRate    int
	Bitrate       string
	Normalization bool
	UseLoudnorm   bool
	Tags          Tags
	Log           zerolog.Logger
}

// Transcoder drives ffmpeg to produce M4A artifacts.
type Transcoder struct {
	log zerolog.Logger
}

// New creates a Transcoder.
func New(log zerolog.Logger) *Transcoder {
	return &Transcoder{log: log}
}

var loudnormJSONPattern = regexp.MustCompile(`(?s)\{[^{}]*"input_i"[^{}]*\}`)

type loudnormMeasurement struct {
	InputI         string `json:"input_i"`
	InputTP        string `json:"input_tp"`
	InputLRA       string `json:"input_lra"`
	InputThresh    string `json:"input_thresh"`
	TargetOffset   string `json:"target_offset"`
}

// Transcode converts wavPath to m4aPath. When opts.Normalization and
// opts.UseLoudnorm are both set, it runs a first measurement pass and
// applies the measured loudness parameters on the second, encoding pass
// (spec §4.4 two-pass mode); otherwise it runs a single pass.
func (t *Transcoder) Transcode(ctx context.Context, wavPath, m4aPath string, opts Options) error {
	if _, err := os.Stat(wavPath); err != nil {
		return errs.Transcode("stat source", fmt.Errorf("source file missing: %w", err))
	}
	if !CheckEncoder() {
		return errs.Transcode("check encoder", fmt.Errorf("ffmpeg not found in PATH"))
	}

	if opts.Normalization && opts.UseLoudnorm {
		measurement, err := t.measureLoudness(ctx, wavPath, opts)
		if err != nil {
			return err
		}
		return t.encode(ctx, wavPath, m4aPath, opts, measurement)
	}
	return t.encode(ctx, wavPath, m4aPath, opts, nil)
}

// measureLoudness runs ffmpeg's loudnorm filter in JSON measurement mode and
// scrapes the printed measurement block from stderr — ffmpeg's filters
// write their diagnostic JSON to stderr, never stdout.
func (t *Transcoder) measureLoudness(ctx context.Context, wavPath string, opts Options) (*loudnormMeasurement, error) {
	args := []string{
		"-hide_banner",
		"-i", wavPath,
		"-af", "loudnorm=I=-16:TP=-1.5:LRA=11:print_format=json",
		"-f", "null", "-",
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errs.Transcode("loudnorm measurement pass", fmt.Errorf("ffmpeg: %w: %s", err, stderr.String()))
	}

	block := loudnormJSONPattern.Find(stderr.Bytes())
	if block == nil {
		return nil, errs.Transcode("loudnorm measurement pass", fmt.Errorf("could not locate measurement JSON in ffmpeg output"))
	}
	var m loudnormMeasurement
	if err := json.Unmarshal(block, &m); err != nil {
		return nil, errs.Transcode("parse loudnorm measurement", err)
	}
	return &m, nil
}

func (t *Transcoder) encode(ctx context.Context, wavPath, m4aPath string, opts Options, measurement *loudnormMeasurement) error {
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 22050
	}
	bitrate := opts.Bitrate
	if bitrate == "" {
		bitrate = "32k"
	}

	var loudnormFilter string
	if measurement != nil {
		loudnormFilter = fmt.Sprintf(
			"loudnorm=I=-16:TP=-1.5:LRA=11:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true",
			measurement.InputI, measurement.InputTP, measurement.InputLRA, measurement.InputThresh, measurement.TargetOffset,
		)
	}

	args := []string{"-y", "-i", wavPath}
	if loudnormFilter != "" {
		args = append(args, "-af", loudnormFilter)
	}
	args = append(args,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-c:a", "aac",
		"-b:a", bitrate,
	)
	args = append(args, tagArgs(opts.Tags)...)
	args = append(args, m4aPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errs.Transcode("encode", fmt.Errorf("ffmpeg: %w: %s", err, stderr.String()))
	}
	return nil
}

func tagArgs(tags Tags) []string {
	var args []string
	add := func(key, value string) {
		if value != "" {
			args = append(args, "-metadata", fmt.Sprintf("%s=%s", key, value))
		}
	}
	add("album", tags.Album)
	add("artist", tags.Artist)
	if !tags.Date.IsZero() {
		add("date", tags.Date.UTC().Format(time.RFC3339))
	}
	add("genre", tags.Genre)
	add("title", tags.Title)
	add("comment", tags.Comment)
	return args
}
