package gateway

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"
	"strings"

	"github.com/claude/ironlog/internal/session"
)

// maxAvatarPixels bounds decoded avatar dimensions.
const maxAvatarPixels = 4096 * 4096

// Avatar describes a downloaded profile picture.
type Avatar struct {
	Path        string `json:"path"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

func objectPath(bucket, path string) string {
	parts := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/storage/v1/object/" + url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}

// Download fetches an object from a storage bucket.
func (c *Client) Download(ctx context.Context, bucket, path string) ([]byte, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("downloading from %s: %w: empty path", bucket, session.ErrValidation)
	}
	data, h, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   objectPath(bucket, path),
		header: http.Header{"Accept": {"*/*"}},
	})
	if err != nil {
		return nil, "", fmt.Errorf("downloading %s/%s: %w", bucket, path, err)
	}
	return data, h.Get("Content-Type"), nil
}

// Avatar downloads and validates a profile picture. Only PNG, JPEG and GIF
// images are accepted.
func (c *Client) Avatar(ctx context.Context, bucket, path string) (*Avatar, error) {
	data, ct, err := c.Download(ctx, bucket, path)
	if err != nil {
		return nil, err
	}
	return decodeAvatar(path, ct, data)
}

func decodeAvatar(path, contentType string, data []byte) (*Avatar, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("avatar %s: %w: %v", path, session.ErrValidation, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxAvatarPixels {
		return nil, fmt.Errorf("avatar %s: %w: bad dimensions %dx%d", path, session.ErrValidation, cfg.Width, cfg.Height)
	}
	return &Avatar{
		Path:        path,
		Format:      format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Size:        len(data),
		ContentType: contentType,
		Data:        data,
	}, nil
}
