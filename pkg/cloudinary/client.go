// Package cloudinary provides a client for the Cloudinary signed upload API.
// Uploads pass the remote source URL straight through as the file parameter,
// so image bytes never transit this process.
package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Cloudinary operations used by the uploader.
type Client interface {
	// UploadImage uploads the image at sourceURL into the configured folder.
	UploadImage(ctx context.Context, sourceURL string) (*Image, error)
}

// Image is the uploaded image record with derived transformation URLs.
type Image struct {
	PublicID  string
	Format    string
	Width     int
	Height    int
	Public    string
	Thumbnail string
	Medium    string
	Large     string
}

// Option configures the Cloudinary client.
type Option func(*httpClient)

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithDeliveryBaseURL sets a custom delivery base URL (for testing).
func WithDeliveryBaseURL(url string) Option {
	return func(c *httpClient) {
		c.deliveryBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithClock overrides the timestamp source (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *httpClient) {
		c.now = now
	}
}

type httpClient struct {
	cloudName       string
	apiKey          string
	apiSecret       string
	folder          string
	baseURL         string
	deliveryBaseURL string
	http            *http.Client
	now             func() time.Time
}

// NewClient creates a Cloudinary client for one cloud.
func NewClient(cloudName, apiKey, apiSecret, folder string, opts ...Option) Client {
	c := &httpClient{
		cloudName:       cloudName,
		apiKey:          apiKey,
		apiSecret:       apiSecret,
		folder:          folder,
		baseURL:         "https://api.cloudinary.com",
		deliveryBaseURL: "https://res.cloudinary.com",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *httpClient) UploadImage(ctx context.Context, sourceURL string) (*Image, error) {
	params := map[string]string{
		"timestamp": fmt.Sprintf("%d", c.now().Unix()),
	}
	if c.folder != "" {
		params["folder"] = c.folder
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("file", sourceURL)
	form.Set("api_key", c.apiKey)
	form.Set("signature", signParams(params, c.apiSecret))

	reqURL := fmt.Sprintf("%s/v1_1/%s/image/upload", c.baseURL, c.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "cloudinary: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "cloudinary: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "cloudinary: read response body")
	}

	var uploaded uploadResponse
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return nil, eris.Errorf("cloudinary: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if uploaded.Error != nil {
		return nil, eris.Errorf("cloudinary: upload failed: %s", uploaded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("cloudinary: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if uploaded.PublicID == "" {
		return nil, eris.New("cloudinary: empty public_id in response")
	}

	return &Image{
		PublicID:  uploaded.PublicID,
		Format:    uploaded.Format,
		Width:     uploaded.Width,
		Height:    uploaded.Height,
		Public:    c.deliveryURL("", uploaded.PublicID, uploaded.Format),
		Thumbnail: c.deliveryURL("c_fill,w_300,h_300", uploaded.PublicID, uploaded.Format),
		Medium:    c.deliveryURL("c_limit,w_800", uploaded.PublicID, uploaded.Format),
		Large:     c.deliveryURL("c_limit,w_1600", uploaded.PublicID, uploaded.Format),
	}, nil
}

// deliveryURL builds a transformation URL for the delivery CDN.
func (c *httpClient) deliveryURL(transformation, publicID, format string) string {
	segments := []string{c.deliveryBaseURL, c.cloudName, "image", "upload"}
	if transformation != "" {
		segments = append(segments, transformation)
	}
	name := publicID
	if format != "" {
		name += "." + format
	}
	segments = append(segments, name)
	return strings.Join(segments, "/")
}

// signParams produces the Cloudinary request signature: the sorted
// key=value pairs joined by '&', concatenated with the API secret, SHA-1
// hashed. file, api_key, and the signature itself stay out of the signed
// set.
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
