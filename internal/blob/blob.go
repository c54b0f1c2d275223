// Package blob describes binary object storage for uploaded images.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no object exists at a path.
var ErrNotFound = errors.New("object not found")

// Object is a stored binary payload.
type Object struct {
	Data        []byte
	ContentType string
}

// Store persists objects by path.
type Store interface {
	Put(ctx context.Context, path string, obj Object) error
	Get(ctx context.Context, path string) (Object, error)
}

// PurchaseImagePath is the storage path of the index-th image of a purchase.
func PurchaseImagePath(purchaseID string, index int) string {
	return fmt.Sprintf("purchases/%s/%d", purchaseID, index)
}

// DownloadURL returns the public URL serving path under baseURL.
func DownloadURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + "/media/" + strings.TrimPrefix(path, "/")
}
