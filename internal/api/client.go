// Package api is the client for the Nimbus API: upload slot URLs, dataset
// extraction, and file metadata registration.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/nimbus-data/nimbus-ingest/internal/config"
	"github.com/nimbus-data/nimbus-ingest/internal/http"
	"github.com/nimbus-data/nimbus-ingest/internal/logging"
	"github.com/nimbus-data/nimbus-ingest/internal/models"
)

// Endpoint paths
const (
	pathPresignedURL = "/presignedURL"
	pathExtract      = "/datasets/extract"
	pathFiles        = "/files"
)

// Client represents the Nimbus API client
type Client struct {
	httpClient *nethttp.Client
	config     *config.Config
	baseURL    string
	token      string
	logger     *logging.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, errors.New("API base URL is empty")
	}
	logger = logging.OrDefault(logger)

	httpClient, err := http.ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	return &Client{
		httpClient: http.NewRetryableClient(httpClient, cfg.MaxRetries, logger),
		config:     cfg,
		baseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		token:      cfg.AuthToken,
		logger:     logger,
	}, nil
}

// GetConfig returns the configuration used by this API client.
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HasToken reports whether requests carry an Authorization header.
func (c *Client) HasToken() bool {
	return c.token != ""
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).
			Str("error_class", http.ClassifyError(err).String()).Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		endpoint := path
		if i := strings.IndexByte(endpoint, '?'); i >= 0 {
			endpoint = endpoint[:i]
		}
		return nil, &APIError{Method: method, Path: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
	}

	return resp, nil
}

func decodeJSON(resp *nethttp.Response, v interface{}, what string) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", what, err)
	}
	return nil
}

type presignedURLResponse struct {
	UploadURL string `json:"upload_url"`
}

// RequestUploadURL asks the API for a presigned PUT URL for filename.
func (c *Client) RequestUploadURL(ctx context.Context, filename string) (string, error) {
	resp, err := c.doRequest(ctx, nethttp.MethodGet, pathPresignedURL+"?filename="+url.QueryEscape(filename), nil)
	if err != nil {
		return "", err
	}

	var out presignedURLResponse
	if err := decodeJSON(resp, &out, "presigned URL"); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", errors.New("presigned URL response has no upload_url")
	}
	return out.UploadURL, nil
}

type extractRequest struct {
	Filename string `json:"filename"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Extract asks the API to parse the uploaded object and create a dataset.
func (c *Client) Extract(ctx context.Context, filename string, user models.User) (models.Extraction, error) {
	resp, err := c.doRequest(ctx, nethttp.MethodPost, pathExtract, extractRequest{
		Filename: filename,
		UserID:   user.ID,
		Username: user.Username,
	})
	if err != nil {
		return models.Extraction{}, err
	}

	var out models.Extraction
	if err := decodeJSON(resp, &out, "extraction"); err != nil {
		return models.Extraction{}, err
	}
	return out, nil
}

type registerResponse struct {
	FileID string `json:"fileId"`
}

// RegisterFile persists the metadata record and returns the file id. An
// empty id is returned as is; the caller decides whether that is an error.
func (c *Client) RegisterFile(ctx context.Context, record models.FileRecord) (string, error) {
	resp, err := c.doRequest(ctx, nethttp.MethodPost, pathFiles, record)
	if err != nil {
		return "", err
	}

	var out registerResponse
	if err := decodeJSON(resp, &out, "register file"); err != nil {
		return "", err
	}
	return out.FileID, nil
}

// Register implements the pipeline's registrar step.
func (c *Client) Register(ctx context.Context, record models.FileRecord) (string, error) {
	return c.RegisterFile(ctx, record)
}
