// Package ipfs is the pinning-service client used by the registration flow.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"intent-orchestrator/internal/common/config"
	ierr "intent-orchestrator/internal/common/errors"
	"intent-orchestrator/internal/common/logger"
)

// PinResult is one pinned object: the content identifier and a gateway URL
// to reach it.
type PinResult struct {
	CID string `json:"cid"`
	URL string `json:"url"`
}

// Client pins files and JSON documents through an HTTP pinning service.
type Client struct {
	baseURL    string
	apiKey     string
	gateway    string
	httpClient *http.Client
	log        logger.Logger
}

func New(cfg config.IPFSConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	gateway := cfg.Gateway
	if gateway == "" {
		gateway = "https://ipfs.io"
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		gateway:    strings.TrimRight(gateway, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// UploadFile pins raw file bytes under the given name.
func (c *Client) UploadFile(ctx context.Context, name string, data []byte) (*PinResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, ierr.NewUploadFailedError(name, err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, ierr.NewUploadFailedError(name, err)
	}
	if err := writer.Close(); err != nil {
		return nil, ierr.NewUploadFailedError(name, err)
	}

	result, err := c.pin(ctx, "/pinning/pinFileToIPFS", writer.FormDataContentType(), &buf)
	if err != nil {
		return nil, ierr.NewUploadFailedError(name, err)
	}
	return result, nil
}

// UploadJSON pins v serialized as a JSON document.
func (c *Client) UploadJSON(ctx context.Context, v interface{}) (*PinResult, error) {
	payload, err := json.Marshal(map[string]interface{}{"pinataContent": v})
	if err != nil {
		return nil, ierr.NewUploadFailedError("metadata", err)
	}
	result, err := c.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, ierr.NewUploadFailedError("metadata", err)
	}
	return result, nil
}

func (c *Client) pin(ctx context.Context, path, contentType string, body io.Reader) (*PinResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pinning service returned %d: %s", resp.StatusCode, string(raw))
	}

	var decoded struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode pin response: %w", err)
	}
	if decoded.IpfsHash == "" {
		return nil, fmt.Errorf("pin response carried no hash")
	}

	return &PinResult{
		CID: decoded.IpfsHash,
		URL: c.gateway + "/ipfs/" + decoded.IpfsHash,
	}, nil
}
