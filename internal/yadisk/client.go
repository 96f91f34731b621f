package yadisk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://cloud-api.yandex.net/v1/disk"

var (
	ErrNotFound     = errors.New("Файл регистрации не найден на диске")
	ErrDownloadLink = errors.New("failed to get download link")
	ErrDownload     = errors.New("failed to download file content")
	ErrUploadLink   = errors.New("failed to get upload link")
	ErrUpload       = errors.New("failed to upload file")
)

// StatusError carries the HTTP status of a failed call next to the sentinel it
// maps to. Error() reports the sentinel text only.
type StatusError struct {
	Err    error
	Status int
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

type linkResponse struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}

// DownloadLink resolves a short-lived download href for path.
func (c *Client) DownloadLink(ctx context.Context, path string) (string, error) {
	q := url.Values{"path": {path}}
	href, status, err := c.resolve(ctx, "/resources/download?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadLink, err)
	}
	switch {
	case status == http.StatusNotFound:
		return "", &StatusError{Err: ErrNotFound, Status: status}
	case status < 200 || status > 299:
		return "", &StatusError{Err: ErrDownloadLink, Status: status}
	case href == "":
		return "", fmt.Errorf("%w: empty href", ErrDownloadLink)
	}
	return href, nil
}

// UploadLink resolves an upload href for path with overwrite semantics.
func (c *Client) UploadLink(ctx context.Context, path string) (string, error) {
	q := url.Values{"path": {path}, "overwrite": {"true"}}
	href, status, err := c.resolve(ctx, "/resources/upload?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadLink, err)
	}
	if status < 200 || status > 299 {
		return "", &StatusError{Err: ErrUploadLink, Status: status}
	}
	if href == "" {
		return "", fmt.Errorf("%w: empty href", ErrUploadLink)
	}
	return href, nil
}

// Download fetches the raw bytes behind a resolved href.
func (c *Client) Download(ctx context.Context, href string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Err: ErrDownload, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	return data, nil
}

// Upload replaces the file behind href with data.
func (c *Client) Upload(ctx context.Context, href string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, href, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = int64(len(data))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Err: ErrUpload, Status: resp.StatusCode}
	}
	return nil
}

// resolve returns a transport error only; HTTP failures come back as status.
func (c *Client) resolve(ctx context.Context, pathAndQuery string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "OAuth "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", resp.StatusCode, nil
	}
	var link linkResponse
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode link: %w", err)
	}
	return link.Href, resp.StatusCode, nil
}
