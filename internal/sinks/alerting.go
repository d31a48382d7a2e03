package sinks

import (
	"context"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
)

// ICADAlertingSink POSTs the full call record as JSON, grounded on the
// original upload_to_icad_alert.
type ICADAlertingSink struct {
	cfg config.ICADAlertingConfig
}

func NewICADAlertingSink(cfg config.ICADAlertingConfig) *ICADAlertingSink {
	return &ICADAlertingSink{cfg: cfg}
}

func (s *ICADAlertingSink) Name() string { return "icad_alerting" }

func (s *ICADAlertingSink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	if !TalkgroupAllowed(s.cfg.AllowedTalkgroups, rec.Talkgroup) {
		return nil
	}
	headers := map[string]string{"Authorization": s.cfg.APIKey}
	return postJSON(ctx, s.cfg.URL, rec, headers)
}
