// Package consumer wires the MQTT client to the worker pool and the Call
// Pipeline, implementing the Broker Consumer (spec §4.1).
package consumer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/callrecord"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/index"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/metrics"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/pipeline"
	"github.com/TheGreatCodeholio/icad-tr-mqtt-consumer/internal/workerpool"
	"github.com/rs/zerolog"
)

// Consumer dispatches decoded MQTT messages to the worker pool, routing
// audio messages to the Call Pipeline and stats messages to the Index
// Client.
type Consumer struct {
	pool     *workerpool.Pool
	pipeline *pipeline.Pipeline
	index    *index.Client
	log      zerolog.Logger
}

func New(pool *workerpool.Pool, p *pipeline.Pipeline, idx *index.Client, log zerolog.Logger) *Consumer {
	return &Consumer{pool: pool, pipeline: p, index: idx, log: log.With().Str("component", "consumer").Logger()}
}

// HandleMessage is the MQTT message callback: it parses the topic suffix,
// rejects unconfigured producers, and enqueues the appropriate work onto
// the bounded pool without blocking the broker's I/O goroutine.
func (c *Consumer) HandleMessage(topicPrefix string, topic string, payload []byte) {
	metrics.MQTTMessagesTotal.WithLabelValues(topic).Inc()

	suffix := strings.TrimPrefix(topic, topicPrefix)
	route := ParseSuffix(suffix)
	if route.Kind == "" {
		c.log.Debug().Str("topic", topic).Msg("unrecognized topic, dropping")
		metrics.MQTTMessagesRejectedTotal.WithLabelValues("unknown_topic").Inc()
		return
	}

	switch route.Kind {
	case "audio":
		c.handleAudio(payload)
	default:
		c.handleStats(route.Kind, payload)
	}
}

func (c *Consumer) handleAudio(payload []byte) {
	var env callrecord.AudioEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.log.Error().Err(err).Msg("decode audio envelope failed")
		metrics.MQTTMessagesRejectedTotal.WithLabelValues("decode_error").Inc()
		return
	}
	if pipeline.RejectDefaultInstance(env.InstanceID) {
		c.log.Warn().Str("instance_id", env.InstanceID).Msg("rejecting message from unconfigured instance_id")
		metrics.MQTTMessagesRejectedTotal.WithLabelValues("default_instance_id").Inc()
		return
	}

	wavBytes, err := pipeline.DecodeAudio(env.Call.AudioWavBase64)
	if err != nil {
		c.log.Error().Err(err).Msg("decode audio payload failed")
		metrics.MQTTMessagesRejectedTotal.WithLabelValues("decode_error").Inc()
		return
	}

	accepted := c.pool.Enqueue(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := c.pipeline.Process(ctx, env, wavBytes); err != nil {
			c.log.Error().Err(err).Str("short_name", env.Call.Metadata.ShortName).Msg("pipeline processing failed")
		}
	})
	if !accepted {
		metrics.MQTTMessagesRejectedTotal.WithLabelValues("queue_full").Inc()
	}
}

func (c *Consumer) handleStats(kind string, payload []byte) {
	if c.index == nil {
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		c.log.Debug().Err(err).Str("kind", kind).Msg("decode stats message failed")
		return
	}

	var idx string
	switch kind {
	case "rates":
		idx = index.Rates
	case "recorders":
		idx = index.Recorders
	case "calls_active", "call_end", "unit_call", "unit_end":
		idx = index.Units
	default:
		return
	}

	accepted := c.pool.Enqueue(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.index.IndexDocument(ctx, idx, doc)
	})
	if !accepted {
		metrics.MQTTMessagesRejectedTotal.WithLabelValues("queue_full").Inc()
	}
}
