package cloudinary

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadImage(t *testing.T) {
	fixed := time.Unix(1700000000, 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)
		assert.Equal(t, "https://example.com/photo.jpg", r.PostForm.Get("file"))
		assert.Equal(t, "key123", r.PostForm.Get("api_key"))
		assert.Equal(t, "1700000000", r.PostForm.Get("timestamp"))

		// Signature covers folder and timestamp only, sorted, plus secret.
		sum := sha1.Sum([]byte("folder=incidents&timestamp=1700000000" + "secret456"))
		assert.Equal(t, hex.EncodeToString(sum[:]), r.PostForm.Get("signature"))

		_, _ = w.Write([]byte(`{
			"public_id": "incidents/photo_abc",
			"format": "jpg",
			"width": 1920,
			"height": 1080,
			"secure_url": "https://res.cloudinary.com/demo/image/upload/incidents/photo_abc.jpg"
		}`))
	}))
	defer srv.Close()

	c := NewClient("demo", "key123", "secret456", "incidents",
		WithBaseURL(srv.URL),
		WithClock(func() time.Time { return fixed }),
	)

	img, err := c.UploadImage(context.Background(), "https://example.com/photo.jpg")
	require.NoError(t, err)

	assert.Equal(t, "incidents/photo_abc", img.PublicID)
	assert.Equal(t, 1920, img.Width)
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/incidents/photo_abc.jpg",
		img.Public)
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/c_fill,w_300,h_300/incidents/photo_abc.jpg",
		img.Thumbnail)
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/c_limit,w_800/incidents/photo_abc.jpg",
		img.Medium)
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/c_limit,w_1600/incidents/photo_abc.jpg",
		img.Large)
}

func TestUploadImageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid image file"}}`))
	}))
	defer srv.Close()

	c := NewClient("demo", "k", "s", "", WithBaseURL(srv.URL))
	_, err := c.UploadImage(context.Background(), "https://example.com/not-an-image")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid image file")
}

func TestSignParams(t *testing.T) {
	sig := signParams(map[string]string{
		"timestamp": "100",
		"folder":    "f",
	}, "sec")

	sum := sha1.Sum([]byte("folder=f&timestamp=100sec"))
	assert.Equal(t, hex.EncodeToString(sum[:]), sig)
}
