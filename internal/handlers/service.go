package handlers

import (
	"context"
	"fmt"
	"time"

	"resumepdf/internal/chrome"
	"resumepdf/internal/domain"
	"resumepdf/internal/pdf"
	"resumepdf/internal/storage"
	u "resumepdf/internal/utils"
)

// Renderer captures the resume page as a PNG.
type Renderer interface {
	Render(ctx context.Context, spec chrome.CaptureSpec) ([]byte, error)
}

// ObjectStore writes documents and signs download links.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// RenderCache is an optional screenshot cache.
type RenderCache interface {
	Get(ctx context.Context, spec chrome.CaptureSpec) []byte
	Set(ctx context.Context, spec chrome.CaptureSpec, png []byte)
}

// Service renders the resume, publishes it and returns a download link.
type Service struct {
	Config   *u.Config
	renderer Renderer
	store    ObjectStore
	cache    RenderCache
	newKey   func() string
}

// NewService creates a Service. cache may be nil.
func NewService(cfg u.Config, renderer Renderer, store ObjectStore, cache RenderCache) *Service {
	return &Service{
		Config:   &cfg,
		renderer: renderer,
		store:    store,
		cache:    cache,
		newKey:   storage.NewObjectKey,
	}
}

// Publish serves req: the pre-existing default document, or a freshly rendered one.
func (svc *Service) Publish(ctx context.Context, req domain.RenderRequest) (string, error) {
	if req.DefaultPDF {
		return svc.publishDefault(ctx)
	}
	return svc.publishRendered(ctx, req)
}

func (svc *Service) publishDefault(ctx context.Context) (string, error) {
	key := svc.Config.Storage.DefaultKey
	expires := svc.Config.Storage.URLExpiry

	url, err := svc.store.PresignGet(ctx, key, expires)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSign, err)
	}
	u.Info("URL generated", "key", key, "expires_in_secs", int(expires.Seconds()))
	return url, nil
}

func (svc *Service) publishRendered(ctx context.Context, req domain.RenderRequest) (string, error) {
	cfg := svc.Config
	target := domain.TargetURL(cfg.Resume.SiteURL, req.Language, cfg.Resume.LocalizedLanguages)
	spec := chrome.NewCaptureSpec(*cfg, target, req.DarkTheme)

	png, err := svc.capture(ctx, spec)
	if err != nil {
		return "", err
	}

	paper := cfg.PaperFor(req.Language)
	doc, err := pdf.Compose(png, paper)
	if err != nil {
		return "", err
	}
	u.Info("PDF generated", "language", req.Language, "width_mm", paper.Width, "height_mm", paper.Height, "bytes", len(doc))

	key := svc.newKey()
	if err := svc.store.Put(ctx, key, doc, storage.ContentTypePDF); err != nil {
		u.Error("PDF upload failed", "key", key, "error", err)
		if cfg.Storage.AbortOnUploadError {
			return "", fmt.Errorf("%w: %v", domain.ErrUpload, err)
		}
	} else {
		u.Info("PDF stored", "key", key)
	}

	url, err := svc.store.PresignGet(ctx, key, cfg.Storage.URLExpiry)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSign, err)
	}
	u.Info("URL generated", "key", key, "expires_in_secs", int(cfg.Storage.URLExpiry.Seconds()))
	return url, nil
}

func (svc *Service) capture(ctx context.Context, spec chrome.CaptureSpec) ([]byte, error) {
	if svc.cache != nil {
		if png := svc.cache.Get(ctx, spec); png != nil {
			return png, nil
		}
	}
	png, err := svc.renderer.Render(ctx, spec)
	if err != nil {
		u.Error("Render failed", "url", spec.URL, "error", err)
		return nil, err
	}
	if svc.cache != nil {
		svc.cache.Set(ctx, spec, png)
	}
	return png, nil
}
