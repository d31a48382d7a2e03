package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// ICADPlayerSink POSTs the call as multipart/form-data plus the WAV file,
// grounded on the original upload_to_icad_dispatch.
type ICADPlayerSink struct {
	cfg       config.ICADPlayerConfig
	systemID  string
}

func NewICADPlayerSink(cfg config.ICADPlayerConfig, systemID string) *ICADPlayerSink {
	return &ICADPlayerSink{cfg: cfg, systemID: systemID}
}

func (s *ICADPlayerSink) Name() string { return "icad_player" }

func (s *ICADPlayerSink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	if !TalkgroupAllowed(s.cfg.AllowedTalkgroups, rec.Talkgroup) {
		return nil
	}
	freqList, _ := json.Marshal(rec.FreqList)
	srcList, _ := json.Marshal(rec.SrcList)
	dateTime := time.Unix(rec.StartTime, 0).UTC().Format("2006-01-02T15:04:05.000000Z")

	fields := []multipartField{
		{"key", s.cfg.APIKey},
		{"audioName", rec.Filename},
		{"audioType", "audio/x-wav"},
		{"dateTime", dateTime},
		{"frequencies", string(freqList)},
		{"patches", "[]"},
		{"sources", string(srcList)},
		{"system", s.systemID},
		{"systemLabel", rec.ShortName},
		{"talkgroup", fmt.Sprintf("%d", rec.Talkgroup)},
		{"talkgroupGroup", rec.TalkgroupGroup},
		{"talkgroupLabel", rec.TalkgroupDesc},
		{"talkgroupTag", rec.TalkgroupTag},
	}
	files := []multipartFile{{field: "audio", filename: rec.Filename, path: wavPath(art, rec)}}

	return postMultipart(ctx, s.cfg.URL, fields, files, nil)
}
