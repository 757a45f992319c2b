package chrome

import (
	"context"
	"fmt"

	"resumepdf/internal/domain"
	u "resumepdf/internal/utils"
)

// Renderer launches a fresh browser for every capture.
type Renderer struct {
	cfg u.Config
}

// NewRenderer creates a Renderer.
func NewRenderer(cfg u.Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// Render captures spec and returns the PNG. The browser is released on every path.
func (r *Renderer) Render(ctx context.Context, spec CaptureSpec) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RenderTimeout())
	defer cancel()

	b, err := Launch(ctx, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			u.Warn("Browser close failed", "error", err)
			return
		}
		u.Info("Browser closed")
	}()

	png, err := Capture(b.Context(), spec)
	if err != nil {
		if IsSessionInterrupted(err) {
			u.Error("Chrome session interrupted", "url", spec.URL, "timeout_secs", r.cfg.PDF.TimeoutSecs, "error", err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return png, nil
}
