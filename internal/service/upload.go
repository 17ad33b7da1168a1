package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/allureimpex/allure-impex-api/internal/imagehost"
	"github.com/allureimpex/allure-impex-api/internal/model"
)

// MaxFilesPerUpload caps a multiple upload.
const MaxFilesPerUpload = 10

// sniffLen is how much of a file mimetype needs to decide.
const sniffLen = 3072

// allowedTypes maps accepted extensions to the content type the bytes must
// sniff as.
var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

var errNoImageHost = errors.New("image host is not configured")

const typeRejected = "Only image files (JPEG, PNG, GIF, WEBP) and PDFs are allowed"

// UploadFile is one file received from a client.
type UploadFile struct {
	Name string
	Size int64
	Body io.Reader
}

// UploadService proxies files to the image host.
type UploadService struct {
	images   imagehost.Host
	maxBytes int64
	timeout  time.Duration
	log      zerolog.Logger
}

// Upload validates and stores a single file, applying the size-limiting
// transformation.
func (s *UploadService) Upload(ctx context.Context, actor model.Identity, f UploadFile) (imagehost.Asset, error) {
	if err := s.ready(actor); err != nil {
		return imagehost.Asset{}, err
	}
	body, err := s.inspect(f)
	if err != nil {
		return imagehost.Asset{}, err
	}
	return s.put(ctx, imagehost.File{Name: f.Name, Body: body, Transform: imagehost.LimitTransform})
}

// UploadMany validates every file before uploading any, then uploads them
// concurrently. The first failure cancels the uploads still in flight and
// releases the ones that finished.
func (s *UploadService) UploadMany(ctx context.Context, actor model.Identity, files []UploadFile) ([]imagehost.Asset, error) {
	if err := s.ready(actor); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, BadRequest("No files uploaded")
	}
	if len(files) > MaxFilesPerUpload {
		return nil, BadRequest(fmt.Sprintf("Too many files (max %d)", MaxFilesPerUpload))
	}
	bodies := make([]io.Reader, len(files))
	for i, f := range files {
		b, err := s.inspect(f)
		if err != nil {
			return nil, err
		}
		bodies[i] = b
	}

	assets := make([]imagehost.Asset, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		g.Go(func() error {
			a, err := s.put(gctx, imagehost.File{Name: files[i].Name, Body: bodies[i]})
			if err != nil {
				return err
			}
			assets[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, a := range assets {
			if a.PublicID != "" {
				s.release(ctx, a.PublicID)
			}
		}
		return nil, err
	}
	return assets, nil
}

// Delete releases an object. Unknown ids fail NotFound.
func (s *UploadService) Delete(ctx context.Context, actor model.Identity, publicID string) error {
	if err := requireCap(actor, model.CapDeleteUploads); err != nil {
		return err
	}
	publicID = strings.Trim(publicID, "/ ")
	if publicID == "" {
		return BadRequest("Public id is required")
	}
	if s.images == nil {
		return Upstream(errNoImageHost)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.images.Destroy(ctx, publicID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, imagehost.ErrNotFound):
		return NotFound("File not found")
	default:
		return Upstream(err)
	}
}

func (s *UploadService) ready(actor model.Identity) error {
	if err := requireCap(actor, model.CapUpload); err != nil {
		return err
	}
	if s.images == nil {
		return Upstream(errNoImageHost)
	}
	return nil
}

// inspect checks size, extension and sniffed content type and returns a
// reader that still yields the whole file.
func (s *UploadService) inspect(f UploadFile) (io.Reader, error) {
	if f.Size > s.maxBytes {
		return nil, BadRequest(fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}
	want, ok := allowedTypes[strings.ToLower(filepath.Ext(f.Name))]
	if !ok {
		return nil, BadRequest(typeRejected)
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, BadRequest("Cannot read uploaded file")
	}
	head = head[:n]
	if n == 0 {
		return nil, BadRequest("Uploaded file is empty")
	}
	if !mimetype.Detect(head).Is(want) {
		return nil, BadRequest(typeRejected)
	}
	return io.MultiReader(bytes.NewReader(head), f.Body), nil
}

func (s *UploadService) put(ctx context.Context, f imagehost.File) (imagehost.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	a, err := s.images.Upload(ctx, f)
	if err != nil {
		return imagehost.Asset{}, Upstream(err)
	}
	return a, nil
}

func (s *UploadService) release(ctx context.Context, publicID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.images.Destroy(ctx, publicID); err != nil {
		s.log.Warn().Err(err).Str("public_id", publicID).Msg("release after failed upload")
	}
}
