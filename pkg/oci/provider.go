package oci

import (
	"context"
)

// ImageProvider abstracts where images come from (registry, local, tar, etc.)
type ImageProvider interface {
	GetImage(ctx context.Context) (*Image, error)
	Info() string
}

// OciImageSource is the name internal/builder was written against; kept as
// an alias so callers can use either name.
type OciImageSource = ImageProvider
