package sinks

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// BroadcastifySink uploads a call to Broadcastify Calls, following the same
// multipart shape as the sibling dispatch-style sinks.
type BroadcastifySink struct {
	cfg config.BroadcastifyConfig
}

func NewBroadcastifySink(cfg config.BroadcastifyConfig) *BroadcastifySink {
	return &BroadcastifySink{cfg: cfg}
}

func (s *BroadcastifySink) Name() string { return "broadcastify" }

func (s *BroadcastifySink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	fields := []multipartField{
		{"apiKey", s.cfg.APIKey},
		{"systemId", s.cfg.SystemID},
		{"talkgroup", strconv.Itoa(rec.Talkgroup)},
		{"dateTime", strconv.FormatInt(rec.StartTime, 10)},
	}
	files := []multipartFile{{field: "audio", filename: filepath.Base(art.M4APath), path: art.M4APath}}
	return postMultipart(ctx, s.cfg.URL, fields, files, nil)
}
