package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/DammyCodes-all/framez-socials/internal/store"
)

// ObjectStore implements store.ObjectStore over the storage API.
type ObjectStore struct {
	client *Client
	http   *http.Client
	bucket string
}

var _ store.ObjectStore = (*ObjectStore)(nil)

// ObjectStore returns a store for the configured bucket that authorizes
// uploads with ts.
func (c *Client) ObjectStore(ts oauth2.TokenSource) *ObjectStore {
	return &ObjectStore{client: c, http: c.authorizedHTTP(ts), bucket: c.cfg.Bucket}
}

func (o *ObjectStore) Upload(ctx context.Context, obj store.Object) error {
	if obj.Key == "" || obj.Body == nil {
		return store.ErrInvalidInput
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := http.Header{
		"Content-Type":  {contentType},
		"Cache-Control": {"max-age=3600"},
		"X-Upsert":      {"false"},
	}

	err := o.client.do(ctx, o.http, request{
		method:  http.MethodPost,
		path:    "/storage/v1/object/" + o.bucket + "/" + obj.Key,
		header:  header,
		rawBody: obj.Body,
	}, nil)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return store.ErrObjectExists
		}
		return fmt.Errorf("failed to upload %s: %w", obj.Key, err)
	}

	return nil
}

// PublicURL returns the unauthenticated URL of key in the public bucket.
func (o *ObjectStore) PublicURL(key string) string {
	return o.client.endpoint("/storage/v1/object/public/"+o.bucket+"/"+key, nil)
}
