// Package imagehost fronts the external image host that stores uploaded
// product images and documents.
package imagehost

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Destroy when the host has no such object.
var ErrNotFound = errors.New("image not found")

// LimitTransform bounds large images and lets the host pick quality.
// Applied to single uploads only.
const LimitTransform = "c_limit,w_1200,h_800/q_auto:good"

// File is one object to upload.
type File struct {
	Name      string
	Body      io.Reader
	Transform string
}

// Asset is the provider metadata echoed back to the client.
type Asset struct {
	URL          string `json:"url"`
	PublicID     string `json:"public_id"`
	Format       string `json:"format"`
	Bytes        int    `json:"bytes"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	OriginalName string `json:"originalname,omitempty"`
}

// Host uploads and releases objects.
type Host interface {
	Upload(ctx context.Context, f File) (Asset, error)
	Destroy(ctx context.Context, publicID string) error
}
