package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"doctorwang-backend/internal/models"
)

const endpointChat = "/api/chat"

// RelayClient calls the relay endpoint of a running server. It satisfies
// conversation.Relayer.
type RelayClient struct {
	httpClient *http.Client
	server     string
}

func NewRelayClient(server string) (*RelayClient, error) {
	normalizedServer, err := normalizeServerURL(server)
	if err != nil {
		return nil, errors.Wrap(err, "invalid server URL")
	}

	return &RelayClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				IdleConnTimeout: 60 * time.Second,
			},
		},
		server: normalizedServer,
	}, nil
}

// normalizeServerURL ensures a scheme and drops any path or trailing slash
func normalizeServerURL(server string) (string, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}

	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("cannot parse %q", server)
	}

	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

func (c *RelayClient) Server() string {
	return c.server
}

// Relay posts message and returns the model reply. A non-2xx answer becomes
// an error carrying the server's details.
func (c *RelayClient) Relay(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(models.RelayRequest{Message: message})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+endpointChat, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var relayErr models.RelayError
		if json.Unmarshal(raw, &relayErr) == nil && (relayErr.Details != "" || relayErr.Error != "") {
			detail := relayErr.Details
			if detail == "" {
				detail = relayErr.Error
			}
			return "", errors.Errorf("relay returned %d: %s", resp.StatusCode, detail)
		}
		return "", errors.Errorf("relay returned HTTP status %d", resp.StatusCode)
	}

	var relayResp models.RelayResponse
	if err := json.Unmarshal(raw, &relayResp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	return relayResp.Response, nil
}
