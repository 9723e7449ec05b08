package binlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/utils"
	"github.com/sirupsen/logrus"
)

// responses larger than this are treated as malformed
const maxBodySize = 64 << 10

var errNotFound = errors.New("bin not found")

// Client handles integration with the binlist.net BIN directory
type Client struct {
	url     string
	client  *http.Client
	log     *logrus.Logger
	metrics *metrics.Metrics
}

// NewClient initializes a new BIN directory client
func NewClient(cfg *config.Config, log *logrus.Logger, m *metrics.Metrics) *Client {
	return &Client{
		url: cfg.BinListURL,
		client: &http.Client{
			Timeout: cfg.BinLookupTimeout,
		},
		log:     log,
		metrics: m,
	}
}

// lookupResponse mirrors the binlist.net v3 response body
type lookupResponse struct {
	Scheme  *string `json:"scheme"`
	Type    *string `json:"type"`
	Brand   *string `json:"brand"`
	Prepaid *bool   `json:"prepaid"`
	Country *struct {
		Name  *string `json:"name"`
		Emoji *string `json:"emoji"`
	} `json:"country"`
	Bank *struct {
		Name *string `json:"name"`
	} `json:"bank"`
}

// sendRequest fetches the directory entry for a BIN prefix
func (c *Client) sendRequest(ctx context.Context, prefix string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/"+url.PathEscape(prefix), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept-Version", "3")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("binlist response for %s: %s", prefix, string(body))

	return body, nil
}

// parseResponse flattens the directory response into BinInfo
func (c *Client) parseResponse(body []byte) (models.BinInfo, error) {
	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.BinInfo{}, fmt.Errorf("failed to parse response: %w", err)
	}

	info := models.BinInfo{
		Scheme:  resp.Scheme,
		Type:    resp.Type,
		Brand:   resp.Brand,
		Prepaid: resp.Prepaid,
	}
	if resp.Country != nil {
		info.Country = resp.Country.Name
		info.CountryEmoji = resp.Country.Emoji
	}
	if resp.Bank != nil {
		info.Bank = resp.Bank.Name
	}
	return info, nil
}

// Lookup returns directory data for the BIN of raw.
// It never fails: an unknown BIN or an unavailable directory yields an empty BinInfo.
func (c *Client) Lookup(ctx context.Context, raw string) models.BinInfo {
	prefix := utils.BinPrefix(raw)
	if prefix == "" {
		c.metrics.IncrementBinLookup(metrics.BinSkipped)
		return models.BinInfo{}
	}

	start := time.Now()
	body, err := c.sendRequest(ctx, prefix)
	if errors.Is(err, errNotFound) {
		c.metrics.IncrementBinLookup(metrics.BinNotFound)
		c.log.Debugf("BIN %s not found", prefix)
		return models.BinInfo{}
	}
	if err != nil {
		c.metrics.IncrementBinLookup(metrics.BinError)
		c.log.WithError(err).WithField("duration", time.Since(start)).Warnf("BIN lookup for %s failed", prefix)
		return models.BinInfo{}
	}

	info, err := c.parseResponse(body)
	if err != nil {
		c.metrics.IncrementBinLookup(metrics.BinError)
		c.log.WithError(err).Warnf("BIN lookup for %s returned a malformed body", prefix)
		return models.BinInfo{}
	}

	c.metrics.IncrementBinLookup(metrics.BinFound)
	c.log.Infof("Retrieved BIN info for %s in %s", prefix, time.Since(start))
	return info
}
