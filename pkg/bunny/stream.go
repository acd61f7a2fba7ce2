// Package bunny provides clients for Bunny Stream (video hosting) and Bunny
// Edge Storage (document hosting behind a pull zone).
package bunny

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// StreamClient defines the Bunny Stream operations used by the uploader.
type StreamClient interface {
	// FetchVideo creates a video in the library and instructs Bunny to fetch
	// it from the source URL. Bunny transcodes asynchronously; the returned
	// URLs become live once processing finishes.
	FetchVideo(ctx context.Context, title, sourceURL string) (*Video, error)
}

// Video is the created video record with its derived playback URLs.
type Video struct {
	GUID      string
	Title     string
	Stream    string
	Embed     string
	Thumbnail string
}

// Option configures the Stream client.
type Option func(*streamClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *streamClient) {
		c.baseURL = url
	}
}

// WithEmbedBaseURL sets a custom embed base URL (for testing).
func WithEmbedBaseURL(url string) Option {
	return func(c *streamClient) {
		c.embedBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *streamClient) {
		c.http = hc
	}
}

type streamClient struct {
	apiKey       string
	libraryID    string
	cdnHost      string
	baseURL      string
	embedBaseURL string
	http         *http.Client
}

// NewStreamClient creates a Bunny Stream client for one video library.
// cdnHost is the library's CDN hostname, e.g. "vz-abc123.b-cdn.net".
func NewStreamClient(apiKey, libraryID, cdnHost string, opts ...Option) StreamClient {
	c := &streamClient{
		apiKey:       apiKey,
		libraryID:    libraryID,
		cdnHost:      cdnHost,
		baseURL:      "https://video.bunnycdn.com",
		embedBaseURL: "https://iframe.mediadelivery.net",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createVideoRequest struct {
	Title string `json:"title"`
}

type createVideoResponse struct {
	GUID  string `json:"guid"`
	Title string `json:"title"`
}

type fetchVideoRequest struct {
	URL string `json:"url"`
}

func (c *streamClient) FetchVideo(ctx context.Context, title, sourceURL string) (*Video, error) {
	created, err := c.createVideo(ctx, title)
	if err != nil {
		return nil, err
	}

	if err := c.fetchSource(ctx, created.GUID, sourceURL); err != nil {
		return nil, err
	}

	return &Video{
		GUID:      created.GUID,
		Title:     created.Title,
		Stream:    fmt.Sprintf("https://%s/%s/playlist.m3u8", c.cdnHost, created.GUID),
		Embed:     fmt.Sprintf("%s/embed/%s/%s", c.embedBaseURL, c.libraryID, created.GUID),
		Thumbnail: fmt.Sprintf("https://%s/%s/thumbnail.jpg", c.cdnHost, created.GUID),
	}, nil
}

func (c *streamClient) createVideo(ctx context.Context, title string) (*createVideoResponse, error) {
	reqURL := fmt.Sprintf("%s/library/%s/videos", c.baseURL, c.libraryID)
	body, status, err := c.post(ctx, reqURL, createVideoRequest{Title: title})
	if err != nil {
		return nil, eris.Wrap(err, "bunny: create video")
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, eris.Errorf("bunny: create video: unexpected status %d: %s", status, string(body))
	}

	var created createVideoResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, eris.Wrap(err, "bunny: unmarshal create response")
	}
	if created.GUID == "" {
		return nil, eris.New("bunny: create video: empty guid in response")
	}
	return &created, nil
}

func (c *streamClient) fetchSource(ctx context.Context, guid, sourceURL string) error {
	reqURL := fmt.Sprintf("%s/library/%s/videos/%s/fetch", c.baseURL, c.libraryID, guid)
	body, status, err := c.post(ctx, reqURL, fetchVideoRequest{URL: sourceURL})
	if err != nil {
		return eris.Wrap(err, "bunny: fetch video source")
	}
	if status != http.StatusOK {
		return eris.Errorf("bunny: fetch video source: unexpected status %d: %s", status, string(body))
	}
	return nil
}

func (c *streamClient) post(ctx context.Context, reqURL string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, eris.Wrap(err, "bunny: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, 0, eris.Wrap(err, "bunny: create request")
	}
	req.Header.Set("AccessKey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "bunny: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "bunny: read response body")
	}
	return body, resp.StatusCode, nil
}
