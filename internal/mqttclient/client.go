// Package mqttclient wraps the paho MQTT client with the authentication
// selection, wildcard subscription, and fatal-on-disconnect semantics this
// consumer requires.
package mqttclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MessageHandler is invoked for every inbound message on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client wraps a paho MQTT connection.
type Client struct {
	conn      mqtt.Client
	topics    []string
	connected atomic.Bool
	fatal     atomic.Bool
	log       zerolog.Logger
	handler   MessageHandler
}

// TLSOptions carries the client-certificate triple for mTLS authentication.
type TLSOptions struct {
	CACert     string
	ClientCert string
	ClientKey  string
}

func (t TLSOptions) complete() bool {
	return t.CACert != "" && t.ClientCert != "" && t.ClientKey != ""
}

// Options configures a broker connection.
type Options struct {
	BrokerURL string
	ClientID  string
	Topics    string
	Username  string
	Password  string
	TLS       TLSOptions
	Log       zerolog.Logger
}

// Connect opens a broker connection and subscribes to the configured topics.
// Authentication is selected in priority order: client-certificate triple
// (mTLS) first, then username+password, then anonymous (spec §4.1).
// Connection loss does not trigger a transparent reconnect: it sets a fatal
// flag observable via Fatal(), since spec §4.1/§7 treats broker disconnect
// as fatal to the process — a deliberate divergence from a transparent
// auto-reconnect policy.
func Connect(opts Options) (*Client, error) {
	c := &Client{
		topics: parseTopics(opts.Topics),
		log:    opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(false).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
			c.log.Warn().Str("topic", msg.Topic()).Msg("message received with no matching handler")
		})

	switch {
	case opts.TLS.complete():
		tlsConfig, err := buildTLSConfig(opts.TLS)
		if err != nil {
			return nil, fmt.Errorf("mqttclient: build tls config: %w", err)
		}
		clientOpts.SetTLSConfig(tlsConfig)
		c.log.Info().Msg("mqtt: using mTLS client-certificate authentication")
	case opts.Username != "":
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
		c.log.Info().Msg("mqtt: using username/password authentication")
	default:
		c.log.Warn().Msg("mqtt: no credentials configured, connecting anonymously")
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func buildTLSConfig(opts TLSOptions) (*tls.Config, error) {
	caBytes, err := os.ReadFile(opts.CACert)
	if err != nil {
		return nil, fmt.Errorf("read ca cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("parse ca cert: no certificates found")
	}
	cert, err := tls.LoadX509KeyPair(opts.ClientCert, opts.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load client keypair: %w", err)
	}
	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// SetMessageHandler registers the handler invoked for inbound messages.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.handler = h
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Strs("topics", c.topics).Msg("mqtt connected, subscribing")

	filters := make(map[string]byte, len(c.topics))
	for _, t := range c.topics {
		filters[t] = 0
	}
	token := client.SubscribeMultiple(filters, c.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		c.log.Error().Err(err).Msg("mqtt subscribe failed")
		c.fatal.Store(true)
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.fatal.Store(true)
	c.log.Error().Err(err).Msg("mqtt connection lost, flagging fatal")
}

func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if c.handler != nil {
		c.handler(msg.Topic(), msg.Payload())
		return
	}
	c.log.Debug().
		Str("topic", msg.Topic()).
		Int("payload_size", len(msg.Payload())).
		Msg("mqtt message received")
}

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Fatal reports whether the connection has entered a fatal (disconnected)
// state. main observes this to trigger shutdown after draining in-flight work.
func (c *Client) Fatal() bool {
	return c.fatal.Load()
}

// Close disconnects from the broker.
func (c *Client) Close() {
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}

func parseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return []string{"#"}
	}
	return topics
}
