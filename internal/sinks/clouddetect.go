package sinks

import (
	"context"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// CloudDetectSink uploads the WAV plus the sidecar JSON as two multipart
// files, grounded on the original upload_to_icad_cloud_detect.
type CloudDetectSink struct {
	cfg config.CloudDetectConfig
}

func NewCloudDetectSink(cfg config.CloudDetectConfig) *CloudDetectSink {
	return &CloudDetectSink{cfg: cfg}
}

func (s *CloudDetectSink) Name() string { return "icad_cloud_detect" }

func (s *CloudDetectSink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	sidecar, err := rec.MarshalSidecar()
	if err != nil {
		return err
	}
	headers := map[string]string{"Authorization": s.cfg.APIKey}
	files := []multipartFile{
		{field: "audioFile", filename: rec.Filename, path: wavPath(art, rec)},
		{field: "jsonFile", filename: jsonSiblingName(rec.Filename), content: sidecar},
	}
	return postMultipart(ctx, s.cfg.URL, nil, files, headers)
}
