package sinks

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// OpenMHZSink uploads a call to an openmhz-compatible endpoint, following
// the same multipart shape as the RDIO/iCAD dispatch sinks (field names
// differ per that project's API, frequencies/sources still carried as
// JSON-encoded form fields).
type OpenMHZSink struct {
	cfg config.OpenMHZConfig
}

func NewOpenMHZSink(cfg config.OpenMHZConfig) *OpenMHZSink { return &OpenMHZSink{cfg: cfg} }

func (s *OpenMHZSink) Name() string { return "openmhz" }

func (s *OpenMHZSink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	fields := []multipartField{
		{"api_key", s.cfg.APIKey},
		{"system", s.cfg.ShortName},
		{"talkgroup", strconv.Itoa(rec.Talkgroup)},
		{"talkgroupLabel", rec.TalkgroupDesc},
		{"talkgroupGroup", rec.TalkgroupGroup},
		{"startTime", strconv.FormatInt(rec.StartTime, 10)},
		{"stopTime", strconv.FormatInt(rec.StopTime, 10)},
	}
	files := []multipartFile{{field: "call", filename: filepath.Base(art.M4APath), path: art.M4APath}}
	return postMultipart(ctx, s.cfg.URL, fields, files, nil)
}
