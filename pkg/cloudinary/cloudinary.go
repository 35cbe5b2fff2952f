package cloudinary

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client uploads complaint evidence. Any file type is accepted; Cloudinary picks
// the resource type.
type Client interface {
	Upload(ctx context.Context, file io.Reader, folder, publicID string) (url string, err error)
	DeleteByURL(ctx context.Context, url string) error
}

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

func (c *clientImpl) Upload(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	overwrite := false
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", err
	}
	return result.SecureURL, nil
}

func (c *clientImpl) DeleteByURL(ctx context.Context, url string) error {
	publicID := PublicIDFromURL(url)
	if publicID == "" {
		return nil
	}
	_, err := c.uploader.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}

// PublicIDFromURL extracts "folder/name" from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v123/folder/name.jpg.
func PublicIDFromURL(url string) string {
	i := strings.Index(url, "/upload/")
	if i < 0 {
		return ""
	}
	rest := url[i+len("/upload/"):]
	if parts := strings.SplitN(rest, "/", 2); len(parts) == 2 && strings.HasPrefix(parts[0], "v") {
		rest = parts[1]
	}
	return strings.TrimSuffix(rest, path.Ext(rest))
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{
		cloudName: cloudName,
		uploader:  up,
	}, nil
}
