package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	u "resumepdf/internal/utils"
)

// CaptureSpec describes one screenshot of the resume page.
type CaptureSpec struct {
	URL                 string
	DarkTheme           bool
	ContainerSelector   string
	ThemeToggleSelector string
	RemoveSelectors     []string
	ViewportWidth       int64
	ViewportHeight      int64
}

// NewCaptureSpec fills the page-specific parts of a CaptureSpec from configuration.
func NewCaptureSpec(cfg u.Config, url string, darkTheme bool) CaptureSpec {
	return CaptureSpec{
		URL:                 url,
		DarkTheme:           darkTheme,
		ContainerSelector:   cfg.Resume.ContainerSelector,
		ThemeToggleSelector: cfg.Resume.ThemeToggleSelector,
		RemoveSelectors:     append([]string(nil), cfg.Resume.RemoveSelectors...),
		ViewportWidth:       cfg.Resume.ViewportWidth,
		ViewportHeight:      cfg.Resume.ViewportHeight,
	}
}

// removeElementsScript returns a script that removes every node matching one of
// selectors and evaluates to the number of removed nodes.
func removeElementsScript(selectors []string) string {
	encoded, _ := json.Marshal(selectors)
	if len(selectors) == 0 {
		encoded = []byte("[]")
	}
	return fmt.Sprintf(`(() => {
	let removed = 0;
	for (const selector of %s) {
		document.querySelectorAll(selector).forEach((el) => { el.remove(); removed++; });
	}
	return removed;
})()`, encoded)
}

// captureActions builds the chromedp action list for spec. The screenshot is
// written to buf.
func captureActions(spec CaptureSpec, buf *[]byte, removed *int) []chromedp.Action {
	actions := []chromedp.Action{
		navigateAndWaitIdle(spec.URL),
		chromedp.WaitReady(spec.ContainerSelector, chromedp.ByQuery),
	}
	if !spec.DarkTheme {
		actions = append(actions, chromedp.Click(spec.ThemeToggleSelector, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.EmulateViewport(spec.ViewportWidth, spec.ViewportHeight),
		chromedp.Evaluate(removeElementsScript(spec.RemoveSelectors), removed),
		emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}),
		chromedp.Screenshot(spec.ContainerSelector, buf, chromedp.ByQuery),
		emulation.SetDefaultBackgroundColorOverride(),
	)
	return actions
}

// Capture runs spec in the tab bound to ctx and returns the PNG of the container.
func Capture(ctx context.Context, spec CaptureSpec) ([]byte, error) {
	if spec.URL == "" || spec.ContainerSelector == "" {
		return nil, fmt.Errorf("capture spec needs a url and a container selector")
	}

	var (
		buf     []byte
		removed int
	)
	if err := chromedp.Run(ctx, captureActions(spec, &buf, &removed)...); err != nil {
		return nil, err
	}
	u.Info("Took screenshot", "url", spec.URL, "dark_theme", spec.DarkTheme, "removed_elements", removed, "bytes", len(buf))
	return buf, nil
}

// idleTracker follows lifecycle events per frame. A frame counts as idle once
// networkIdle arrives after its most recent init, so events left over from the
// previous document are ignored.
type idleTracker struct {
	mu     sync.Mutex
	frames map[cdp.FrameID]bool
	notify chan struct{}
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		frames: make(map[cdp.FrameID]bool),
		notify: make(chan struct{}, 1),
	}
}

func (t *idleTracker) observe(e *page.EventLifecycleEvent) {
	t.mu.Lock()
	switch e.Name {
	case "init":
		t.frames[e.FrameID] = false
	case "networkIdle":
		if _, seen := t.frames[e.FrameID]; seen {
			t.frames[e.FrameID] = true
		}
	}
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
}

func (t *idleTracker) idle(frame cdp.FrameID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames[frame]
}

// wait blocks until frame is idle or ctx is done.
func (t *idleTracker) wait(ctx context.Context, frame cdp.FrameID) error {
	for !t.idle(frame) {
		select {
		case <-t.notify:
		case <-ctx.Done():
			return fmt.Errorf("wait for network idle: %w", ctx.Err())
		}
	}
	return nil
}

// navigateAndWaitIdle loads url and blocks until the main frame reports the
// networkIdle lifecycle event for the new document.
func navigateAndWaitIdle(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tracker := newIdleTracker()

		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev any) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok {
				tracker.observe(e)
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}

		if err := tracker.wait(ctx, tree.Frame.ID); err != nil {
			return fmt.Errorf("%s: %w", url, err)
		}
		u.Debug("Network idle", "url", url)
		return nil
	})
}
