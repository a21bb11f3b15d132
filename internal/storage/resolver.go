// Package storage turns the opaque storage paths kept on invoices into
// download URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoPath is returned for invoices without a stored document.
var ErrNoPath = errors.New("no storage path")

// Resolver resolves a storage path to a downloadable URL.
type Resolver interface {
	URL(ctx context.Context, path string) (string, error)
}

// PublicResolver serves documents from a public (or pre-signed) bucket URL.
type PublicResolver struct {
	base *url.URL
}

// NewPublicResolver creates a resolver rooted at baseURL.
func NewPublicResolver(baseURL string) (*PublicResolver, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("storage: invalid base URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("storage: base URL must be absolute, got %q", baseURL)
	}
	return &PublicResolver{base: u}, nil
}

// URL joins the base URL with the escaped segments of path.
func (r *PublicResolver) URL(_ context.Context, path string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return "", ErrNoPath
	}

	segments := strings.Split(trimmed, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	u := *r.base
	u.RawPath = r.base.EscapedPath() + "/" + strings.Join(segments, "/")
	u.Path, _ = url.PathUnescape(u.RawPath)
	return u.String(), nil
}
