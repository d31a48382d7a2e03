// Package index wraps an Elasticsearch client, creating the fixed set of
// indices this system writes to and indexing documents fire-and-forget,
// grounded on the original ElasticSearchClient.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	esv8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog"
)

// Index names, matching the five fixed indices spec §4.8 requires.
const (
	Transmissions = "transmissions"
	Rates         = "rates"
	Recorders     = "recorders"
	Duplicates    = "duplicates"
	Units         = "units"
)

var indexNames = []string{Transmissions, Rates, Recorders, Duplicates, Units}

// Client wraps the official Elasticsearch client with this system's
// index lifecycle and error-swallowing write path.
type Client struct {
	es     *esv8.Client
	prefix string
	log    zerolog.Logger
}

// New constructs an index Client. urls, username, password come from the
// ambient "elasticsearch" configuration block.
func New(urls []string, username, password, indexPrefix string, log zerolog.Logger) (*Client, error) {
	es, err := esv8.NewClient(esv8.Config{
		Addresses: urls,
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("index: create client: %w", err)
	}
	return &Client{es: es, prefix: indexPrefix, log: log.With().Str("component", "index-client").Logger()}, nil
}

func (c *Client) indexName(name string) string {
	if c.prefix == "" {
		return "icad-" + name
	}
	return c.prefix + "-" + name
}

// EnsureIndices idempotently creates every fixed index, ignoring the
// already-exists case, mirroring create_index_if_not_exists.
func (c *Client) EnsureIndices(ctx context.Context) error {
	for _, name := range indexNames {
		if err := c.ensureIndex(ctx, c.indexName(name)); err != nil {
			c.log.Error().Err(err).Str("index", name).Msg("index: failed to ensure index")
		}
	}
	return nil
}

func (c *Client) ensureIndex(ctx context.Context, full string) error {
	existsResp, err := c.es.Indices.Exists([]string{full}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	defer existsResp.Body.Close()
	if existsResp.StatusCode == 200 {
		return nil
	}

	createResp, err := c.es.Indices.Create(full, c.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer createResp.Body.Close()
	if createResp.IsError() {
		body, _ := io.ReadAll(createResp.Body)
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s: %s", full, string(body))
	}
	return nil
}

// IndexDocument writes doc to the given fixed index. Errors are logged,
// never returned as fatal to the caller, per spec §4.8.
func (c *Client) IndexDocument(ctx context.Context, index string, doc any) {
	payload, err := json.Marshal(doc)
	if err != nil {
		c.log.Error().Err(err).Str("index", index).Msg("index: marshal document failed")
		return
	}
	resp, err := c.es.Index(
		c.indexName(index),
		bytes.NewReader(payload),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		c.log.Error().Err(err).Str("index", index).Msg("index: request failed")
		return
	}
	defer resp.Body.Close()
	if resp.IsError() {
		body, _ := io.ReadAll(resp.Body)
		c.log.Error().Str("index", index).Str("response", string(body)).Msg("index: write failed")
	}
}
