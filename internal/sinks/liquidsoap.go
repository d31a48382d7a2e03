package sinks

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
	"github.com/rs/zerolog"
)

const (
	liquidsoapQueueID    = "icad"
	liquidsoapCmdTimeout = 3500 * time.Millisecond
	liquidsoapMinDelay   = 90 * time.Second
	liquidsoapDelayPad   = 20 * time.Second
)

// LiquidsoapSink stages a copy of the call's audio into a spool directory
// and pushes an annotate: request onto a running liquidsoap server's telnet
// command socket, grounded on the original upload_to_broadcastify_icecast.
// This is a supplemented feature (spec.md is silent on it; see
// SPEC_FULL.md §10) so it does not implement the Sink interface's Send
// signature directly — liquidsoap takes a host/port, not a URL. The
// pipeline's fan-out does not construct or call this sink.
type LiquidsoapSink struct {
	cfg  config.LiquidsoapConfig
	host string
	port int
	log  zerolog.Logger
}

func NewLiquidsoapSink(cfg config.LiquidsoapConfig, host string, port int, log zerolog.Logger) *LiquidsoapSink {
	return &LiquidsoapSink{cfg: cfg, host: host, port: port, log: log.With().Str("component", "liquidsoap-sink").Logger()}
}

func (s *LiquidsoapSink) Name() string { return "liquidsoap" }

// Send stages srcPath into the configured spool dir, pushes the annotate
// request, and schedules the staged copy's deletion.
func (s *LiquidsoapSink) Send(rec *callrecord.CallRecord, srcPath string) error {
	if !s.cfg.Enabled.Bool() {
		return nil
	}
	if err := os.MkdirAll(s.cfg.StagingDir, 0o755); err != nil {
		return fmt.Errorf("liquidsoap: mkdir staging dir: %w", err)
	}

	instance := rec.InstanceID
	if instance == "" {
		instance = strconv.FormatInt(rec.StartTime, 10)
	}
	stagedName := instance + "_" + filepath.Base(srcPath)
	stagedPath := filepath.Join(s.cfg.StagingDir, stagedName)

	if err := copyFile(srcPath, stagedPath); err != nil {
		return fmt.Errorf("liquidsoap: stage file: %w", err)
	}

	annotate := buildAnnotation(rec, stagedPath)
	cmd := fmt.Sprintf("%s.push %s", liquidsoapQueueID, annotate)
	resp, err := s.pushCommand(cmd)
	if err != nil {
		s.log.Error().Err(err).Msg("liquidsoap: push command failed")
	} else if !strings.Contains(resp, "Done") && !strings.Contains(resp, "queued") && !strings.Contains(resp, "> ") {
		s.log.Warn().Str("response", strings.TrimSpace(resp)).Msg("liquidsoap: unexpected push response")
	}

	callLen := time.Duration(rec.CallLength) * time.Second
	if callLen <= 0 {
		callLen = liquidsoapMinDelay
	} else if callLen < liquidsoapMinDelay {
		callLen = liquidsoapMinDelay
	}
	delay := callLen + liquidsoapDelayPad + time.Duration(s.cfg.Delay*float64(time.Second))
	time.AfterFunc(delay, func() {
		if rmErr := os.Remove(stagedPath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Error().Err(rmErr).Str("path", stagedPath).Msg("liquidsoap: staged file cleanup failed")
		}
	})

	return err
}

func (s *LiquidsoapSink) pushCommand(cmd string) (string, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	conn, err := net.DialTimeout("tcp", addr, liquidsoapCmdTimeout)
	if err != nil {
		return "", fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(liquidsoapCmdTimeout))

	if _, err := fmt.Fprintf(conn, "%s\n", cmd); err != nil {
		return "", fmt.Errorf("write command: %w", err)
	}

	buf := make([]byte, 4096)
	reader := bufio.NewReader(conn)
	n, err := reader.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(buf[:n]), nil
}

func buildAnnotation(rec *callrecord.CallRecord, stagedPath string) string {
	title := rec.TalkgroupTag
	if title == "" {
		title = fmt.Sprintf("TG %d", rec.Talkgroup)
	}
	pairs := []struct{ key, value string }{
		{"title", title},
		{"artist", rec.ShortName},
		{"genre", "Public Safety"},
		{"comment", fmt.Sprintf("TG %d | Len %.1fs", rec.Talkgroup, rec.PlayLength)},
		{"tgid", strconv.Itoa(rec.Talkgroup)},
		{"system", rec.ShortName},
	}
	var kv []string
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		kv = append(kv, fmt.Sprintf("%s='%s'", p.key, strings.ReplaceAll(p.value, "'", `\'`)))
	}
	return fmt.Sprintf("annotate:%s:%s", strings.Join(kv, ","), stagedPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
