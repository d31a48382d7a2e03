package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// RdioSink POSTs a call as multipart/form-data to an rdio-scanner-compatible
// API, grounded on the original upload_to_rdio: the WAV is attached unless
// remote_storage is enabled and an M4A URL is already available.
type RdioSink struct {
	cfg config.RdioSystemConfig
}

func NewRdioSink(cfg config.RdioSystemConfig) *RdioSink { return &RdioSink{cfg: cfg} }

func (s *RdioSink) Name() string { return "rdio:" + s.cfg.SystemLabel }

func (s *RdioSink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	freqList, _ := json.Marshal(rec.FreqList)
	srcList, _ := json.Marshal(rec.SrcList)
	callPatches := rec.Patches
	if callPatches == nil {
		callPatches = []int{}
	}
	patches, _ := json.Marshal(callPatches)
	dateTime := time.Unix(rec.StartTime, 0).UTC().Format("2006-01-02T15:04:05.000000Z")

	fields := []multipartField{
		{"key", s.cfg.Key},
		{"audioName", rec.Filename},
		{"audioType", "audio/x-wav"},
		{"audioUrl", rec.AudioM4AURL},
		{"dateTime", dateTime},
		{"frequencies", string(freqList)},
		{"frequency", fmt.Sprintf("%v", rec.Freq)},
		{"patches", string(patches)},
		{"sources", string(srcList)},
		{"system", s.cfg.System},
		{"systemLabel", rec.ShortName},
		{"talkgroup", fmt.Sprintf("%d", rec.Talkgroup)},
		{"talkgroupGroup", rec.TalkgroupGroup},
		{"talkgroupLabel", rec.TalkgroupDesc},
		{"talkgroupTag", rec.TalkgroupTag},
	}

	var files []multipartFile
	if !s.cfg.RemoteStorage.Bool() || rec.AudioM4AURL == "" {
		files = append(files, multipartFile{field: "audio", filename: rec.Filename, path: wavPath(art, rec)})
	}

	return postMultipart(ctx, s.cfg.URL, fields, files, nil)
}
