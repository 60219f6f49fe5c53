package datacollector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Record is a single row destined for a Log Analytics custom table.
type Record map[string]any

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts signed batches to the Azure Monitor HTTP Data Collector API.
// It is safe for concurrent use as long as the Doer is.
type Client struct {
	workspaceID string
	key         []byte
	config      Config
	url         string
	doer        Doer
	now         func() time.Time
	logger      *zap.Logger
}

type Option func(*Client)

func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.config = cfg
	}
}

// WithHTTPDoer replaces the built-in HTTP client. Proxy and timeout settings
// from Config are then the Doer's responsibility.
func WithHTTPDoer(doer Doer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(workspaceID, sharedKey string, opts ...Option) (*Client, error) {
	if workspaceID == "" {
		return nil, ErrMissingWorkspaceID
	}
	if sharedKey == "" {
		return nil, ErrMissingSharedKey
	}

	key, err := base64.StdEncoding.DecodeString(sharedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSharedKey, err)
	}

	c := &Client{
		workspaceID: workspaceID,
		key:         key,
		config:      DefaultConfig(),
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.url = c.config.requestURL(workspaceID)

	if c.doer == nil {
		httpClient, err := newHTTPClient(c.config)
		if err != nil {
			return nil, err
		}
		c.doer = httpClient
	}

	return c, nil
}

func (c *Client) WorkspaceID() string {
	return c.workspaceID
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Config() Config {
	return c.config
}

// PostData serializes records into a JSON array and posts them to the logType
// table. A 2xx response is returned as-is and the caller must close its body.
// Any other status yields an *IngestionError; network failures yield a
// *TransportError and encoding failures a *SerializationError.
func (c *Client) PostData(ctx context.Context, records []Record, logType string) (*http.Response, error) {
	body, err := encodeRecords(records)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	date := FormatDate(c.now())
	headers := BuildHeaders(c.workspaceID, c.key, logType, len(body), date)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	headers.Apply(req)

	c.logger.Debug("posting records to data collector",
		zap.String("log_type", logType),
		zap.Int("records", len(records)),
		zap.Int("bytes", len(body)),
		zap.String("url", c.url),
	)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, newIngestionError(resp.StatusCode, respBody)
	}

	return resp, nil
}

func encodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
