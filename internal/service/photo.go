package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/google/uuid"

	"github.com/ecopickup/pooling/internal/domain"
	"github.com/ecopickup/pooling/internal/repo"
)

const (
	// MaxPhotoBytes is the largest photo accepted for a request.
	MaxPhotoBytes = 5 << 20

	// PhotoLinkTTL is how long a download URL stays valid.
	PhotoLinkTTL = 15 * time.Minute
)

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// ObjectStore is the blob storage seam for photos.
// Exists returns false with a nil error when the key is absent.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// PhotoService stores one photo per pickup request.
type PhotoService struct {
	requests repo.RequestRepo
	objects  ObjectStore
	timeout  time.Duration
	now      func() time.Time
}

// NewPhotoService constructs a PhotoService.
func NewPhotoService(requests repo.RequestRepo, objects ObjectStore, storeTimeout time.Duration) *PhotoService {
	return &PhotoService{requests: requests, objects: objects, timeout: storeTimeout, now: utcNow}
}

// PhotoKey is the object key holding the photo of request id.
func PhotoKey(id uuid.UUID) string {
	return "pickup-requests/" + id.String() + "/photo"
}

// Upload stores body as the photo of request id, replacing any earlier one.
// Returns domain.ErrValidation for an unsupported content type, an empty body
// or a body over MaxPhotoBytes, and domain.ErrNotFound for an unknown request.
func (s *PhotoService) Upload(ctx context.Context, id uuid.UUID, contentType string, body io.Reader) (domain.Photo, error) {
	mediaType, data, err := readPhoto(contentType, body)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("service.PhotoService.Upload: %w", err)
	}

	if err := s.requireRequest(ctx, id); err != nil {
		return domain.Photo{}, fmt.Errorf("service.PhotoService.Upload: %w", err)
	}

	photo := domain.Photo{Key: PhotoKey(id), ContentType: mediaType, Size: int64(len(data))}

	putCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.objects.Put(putCtx, photo.Key, bytes.NewReader(data), photo.Size, mediaType); err != nil {
		return domain.Photo{}, fmt.Errorf("service.PhotoService.Upload: %w", unavailable(err))
	}
	return photo, nil
}

// Link returns a download URL for the photo of request id, valid for PhotoLinkTTL.
// Returns domain.ErrNotFound if the request or its photo does not exist.
func (s *PhotoService) Link(ctx context.Context, id uuid.UUID) (domain.PhotoLink, error) {
	if err := s.requireRequest(ctx, id); err != nil {
		return domain.PhotoLink{}, fmt.Errorf("service.PhotoService.Link: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	key := PhotoKey(id)
	ok, err := s.objects.Exists(ctx, key)
	if err != nil {
		return domain.PhotoLink{}, fmt.Errorf("service.PhotoService.Link: %w", unavailable(err))
	}
	if !ok {
		return domain.PhotoLink{}, fmt.Errorf("service.PhotoService.Link: photo: %w", domain.ErrNotFound)
	}

	issued := s.now()
	url, err := s.objects.PresignGet(ctx, key, PhotoLinkTTL)
	if err != nil {
		return domain.PhotoLink{}, fmt.Errorf("service.PhotoService.Link: %w", unavailable(err))
	}
	return domain.PhotoLink{URL: url, ExpiresAt: issued.Add(PhotoLinkTTL)}, nil
}

func (s *PhotoService) requireRequest(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.requests.GetByID(ctx, id); err != nil {
		return unavailable(err)
	}
	return nil
}

// readPhoto checks the content type and reads at most MaxPhotoBytes of body.
// Returns domain.ErrValidation for an unsupported type, an empty body or a
// body over the limit.
func readPhoto(contentType string, body io.Reader) (string, []byte, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !allowedPhotoTypes[mediaType] {
		return "", nil, fmt.Errorf("%w: unsupported photo type %q", domain.ErrValidation, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(body, MaxPhotoBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	switch {
	case len(data) == 0:
		return "", nil, fmt.Errorf("%w: photo is empty", domain.ErrValidation)
	case len(data) > MaxPhotoBytes:
		return "", nil, fmt.Errorf("%w: photo exceeds %d bytes", domain.ErrValidation, MaxPhotoBytes)
	}
	return mediaType, data, nil
}
