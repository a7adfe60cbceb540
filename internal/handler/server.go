// Package handler implements the HTTP surface of the pickup pooling service.
// All handlers are methods on Server. They are split into resource-specific
// files (health.go, requests.go, pools.go, photos.go, items.go) but share the same
// Server struct so they can access its dependencies.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ecopickup/pooling/internal/domain"
)

// PoolingServicer is the submission side the handlers depend on.
// Defining the interface here, in the consumer package, lets handler tests
// inject a mock without touching a store.
type PoolingServicer interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error)
	CountNearby(ctx context.Context, lat, lng float64) (domain.NearbySummary, error)
}

// LifecycleServicer is the read and post-pooling side of a request.
type LifecycleServicer interface {
	Get(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error)
	List(ctx context.Context, f domain.RequestFilter, p domain.PaginationParams) ([]domain.PickupRequest, int64, error)
	Assign(ctx context.Context, id uuid.UUID, pickupTime time.Time) (domain.PickupRequest, error)
	Complete(ctx context.Context, id uuid.UUID) (domain.PickupRequest, error)
	History(ctx context.Context, id uuid.UUID) ([]domain.HistoryEntry, error)
}

// PhotoServicer stores and links request photos.
type PhotoServicer interface {
	Upload(ctx context.Context, id uuid.UUID, contentType string, body io.Reader) (domain.Photo, error)
	Link(ctx context.Context, id uuid.UUID) (domain.PhotoLink, error)
}

// ItemServicer describes photographed items.
type ItemServicer interface {
	Classify(ctx context.Context, contentType, name string, body io.Reader) (domain.ItemDescription, error)
}

// Server holds the dependencies of every handler.
type Server struct {
	pooling   PoolingServicer
	lifecycle LifecycleServicer
	photos    PhotoServicer
	items     ItemServicer
	openAPI   []byte
	logger    *slog.Logger
}

// Options carries the optional dependencies of a Server.
type Options struct {
	// Photos is nil when no object store is configured; photo routes then answer 501.
	Photos PhotoServicer

	// Items is nil when classification is switched off; /items/classify then answers 501.
	Items ItemServicer

	// OpenAPI is served verbatim at /openapi.yaml when non-empty.
	OpenAPI []byte

	Logger *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(pooling PoolingServicer, lifecycle LifecycleServicer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		pooling:   pooling,
		lifecycle: lifecycle,
		photos:    opts.Photos,
		items:     opts.Items,
		openAPI:   opts.OpenAPI,
		logger:    logger,
	}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, Options{})
}

// Handler returns a chi router serving every API route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

// Routes registers every API route on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/requests", func(r chi.Router) {
		r.Post("/", s.SubmitRequest)
		r.Get("/", s.ListRequests)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetRequest)
			r.Get("/history", s.GetRequestHistory)
			r.Post("/assign", s.AssignRequest)
			r.Post("/complete", s.CompleteRequest)
			r.Put("/photo", s.UploadPhoto)
			r.Get("/photo", s.GetPhotoLink)
		})
	})

	r.Get("/pools/nearby", s.GetNearby)
	r.Post("/items/classify", s.ClassifyItem)
}
