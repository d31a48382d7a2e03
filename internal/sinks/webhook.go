package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/config"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/template"
)

// WebhookSink posts an operator-defined body/header template, expanded
// against the call record via the Template Engine, grounded on the
// original WebHook.send_webhook.
type WebhookSink struct {
	cfg config.WebhookConfig
}

func NewWebhookSink(cfg config.WebhookConfig) *WebhookSink { return &WebhookSink{cfg: cfg} }

func (s *WebhookSink) Name() string { return "webhook:" + s.cfg.URL }

func (s *WebhookSink) Send(ctx context.Context, rec *callrecord.CallRecord, art Artifacts) error {
	if !TalkgroupAllowed(s.cfg.AllowedTalkgroups, rec.Talkgroup) {
		return nil
	}

	data, err := recordToMap(rec)
	if err != nil {
		return fmt.Errorf("flatten call record: %w", err)
	}

	headers := make(map[string]string, len(s.cfg.Headers))
	for k, v := range s.cfg.Headers {
		headers[k] = template.RenderString(v, data)
	}

	var bodyTree any
	if len(s.cfg.Body) > 0 {
		if err := json.Unmarshal(s.cfg.Body, &bodyTree); err != nil {
			return fmt.Errorf("parse webhook body template: %w", err)
		}
	}
	rendered := template.Render(bodyTree, data)

	return postJSON(ctx, s.cfg.URL, rendered, headers)
}

// recordToMap flattens a CallRecord into the generic map[string]any tree
// the Template Engine operates over, by round-tripping through JSON.
func recordToMap(rec *callrecord.CallRecord) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
