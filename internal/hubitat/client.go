// Package hubitat is a client for the Hubitat Maker API, covering the
// shade-control subset: set a device position and read it back.
package hubitat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// DefaultPosition is reported when a device exposes neither a position nor
// a level attribute.
const DefaultPosition = 50

// Client talks to a Hubitat hub through the Maker API
type Client struct {
	baseURL     string
	makerAPIID  string
	accessToken string
	maxRetries  int
	httpClient  *http.Client
}

// NewClient creates a Maker API client
func NewClient(baseURL, makerAPIID, accessToken string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		baseURL:     baseURL,
		makerAPIID:  makerAPIID,
		accessToken: accessToken,
		maxRetries:  maxRetries,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// deviceInfo is the Maker API device detail response (attributes subset)
type deviceInfo struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Attributes []struct {
		Name         string          `json:"name"`
		CurrentValue json.RawMessage `json:"currentValue"`
	} `json:"attributes"`
}

// SetPosition commands a shade device to the given position (0 closed, 100
// open). Transient failures are retried with exponential backoff; client
// errors from the hub are permanent.
func (c *Client) SetPosition(ctx context.Context, deviceID string, position int) error {
	if position < 0 {
		position = 0
	}
	if position > 100 {
		position = 100
	}

	u := fmt.Sprintf("%s/apps/api/%s/devices/%s/setPosition/%d?access_token=%s",
		c.baseURL, c.makerAPIID, url.PathEscape(deviceID), position, url.QueryEscape(c.accessToken))

	err := c.retry(ctx, func() error {
		return c.get(ctx, u, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to set position on device %s: %w", deviceID, err)
	}

	log.Debug().Str("device_id", deviceID).Int("position", position).Msg("Shade position set")
	return nil
}

// GetPosition reads the current position of a shade device. Devices that
// report only a dimmer-style "level" attribute are handled; devices with
// neither report DefaultPosition.
func (c *Client) GetPosition(ctx context.Context, deviceID string) (int, error) {
	u := fmt.Sprintf("%s/apps/api/%s/devices/%s?access_token=%s",
		c.baseURL, c.makerAPIID, url.PathEscape(deviceID), url.QueryEscape(c.accessToken))

	var info deviceInfo
	err := c.retry(ctx, func() error {
		return c.get(ctx, u, &info)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read device %s: %w", deviceID, err)
	}

	if pos, ok := attributeInt(&info, "position"); ok {
		return pos, nil
	}
	if lvl, ok := attributeInt(&info, "level"); ok {
		return lvl, nil
	}

	log.Debug().Str("device_id", deviceID).Msg("Device reports no position or level attribute, using default")
	return DefaultPosition, nil
}

func attributeInt(info *deviceInfo, name string) (int, bool) {
	for _, attr := range info.Attributes {
		if attr.Name != name || len(attr.CurrentValue) == 0 {
			continue
		}

		// Maker API reports attribute values as numbers or strings
		var n float64
		if err := json.Unmarshal(attr.CurrentValue, &n); err == nil {
			return int(n), true
		}
		var s string
		if err := json.Unmarshal(attr.CurrentValue, &s); err == nil {
			if v, err := strconv.Atoi(s); err == nil {
				return v, true
			}
		}
		return 0, false
	}
	return 0, false
}

// retry wraps an operation with exponential backoff for transient errors
func (c *Client) retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	)

	return backoff.Retry(func() error {
		err := op()
		if err != nil {
			log.Warn().Err(err).Msg("Hubitat request failed, may retry")
		}
		return err
	}, bo)
}

// get performs a Maker API request, optionally decoding the JSON response.
// 4xx responses are permanent; 5xx and transport errors are retryable.
func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err := fmt.Errorf("hubitat returned status %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	if out == nil {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode hubitat response: %w", err))
	}
	return nil
}
