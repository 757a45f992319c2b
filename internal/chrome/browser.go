// Package chrome drives a headless Chromium to capture the resume page.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"

	u "resumepdf/internal/utils"
)

const closeTimeout = 5 * time.Second

// Browser is a single headless Chromium process with one attached tab.
// It must be closed by the caller; Close is safe to call more than once.
type Browser struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	profileDir  string

	closeOnce sync.Once
	closeErr  error
}

// launchFlags returns the Chromium switches for a constrained container such as
// AWS Lambda: no shared memory, no GPU, no zygote, single process.
func launchFlags(cfg u.Config) map[string]any {
	flags := map[string]any{
		"headless":                  true,
		"disable-gpu":               true,
		"disable-gpu-compositing":   true,
		"disable-features":          "Vulkan,UseSkiaRenderer",
		"use-gl":                    "swiftshader",
		"disable-dev-shm-usage":     true,
		"disable-setuid-sandbox":    true,
		"single-process":            true,
		"no-zygote":                 true,
		"ignore-certificate-errors": true,
		"hide-scrollbars":           true,
	}
	if cfg.PDF.ChromeNoSandbox {
		flags["no-sandbox"] = true
	}
	return flags
}

func allocatorOptions(cfg u.Config, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.UserDataDir(profileDir))
	for name, value := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.PDF.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.PDF.ChromePath))
	}
	return opts
}

// createProfileDir creates a private user-data dir under cfg.PDF.UserDataDir
// (or the system temp dir, which is /tmp on Lambda).
func createProfileDir(cfg u.Config) (string, error) {
	base := cfg.PDF.UserDataDir
	if base == "" {
		base = os.TempDir()
	}
	dir, err := os.MkdirTemp(base, "chromedata-*")
	if err != nil {
		return "", fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	return dir, nil
}

// Launch starts Chromium and opens its first tab. On error nothing is left running.
func Launch(ctx context.Context, cfg u.Config) (*Browser, error) {
	profileDir, err := createProfileDir(cfg)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg, profileDir)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		profileDir:  profileDir,
	}

	// Running no actions forces the browser process to start.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		if rmErr := os.RemoveAll(profileDir); rmErr != nil {
			u.Warn("Profile dir cleanup failed", "profile_dir", profileDir, "error", rmErr)
		}
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	u.Info("Chrome launched", "profile_dir", profileDir)
	return b, nil
}

// Context returns the chromedp context of the browser's tab.
func (b *Browser) Context() context.Context { return b.tabCtx }

// Close closes every open page concurrently, then the browser itself, and removes
// the profile directory.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if err := b.closePages(); err != nil {
			errs = append(errs, err)
		}
		// chromedp.Cancel and the tab's cancel func both wait on the allocation;
		// without a running browser only the cancel func may do so.
		if b.started() {
			if err := chromedp.Cancel(b.tabCtx); err != nil && !IsSessionInterrupted(err) {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if b.tabCancel != nil {
			b.tabCancel()
		}
		if b.allocCancel != nil {
			b.allocCancel()
		}
		if b.profileDir != "" {
			if err := os.RemoveAll(b.profileDir); err != nil {
				errs = append(errs, fmt.Errorf("remove profile dir: %w", err))
			}
		}
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}

// started reports whether the tab has a running browser process.
func (b *Browser) started() bool {
	if b.tabCtx == nil {
		return false
	}
	c := chromedp.FromContext(b.tabCtx)
	return c != nil && c.Browser != nil
}

func (b *Browser) closePages() error {
	if !b.started() || b.tabCtx.Err() != nil {
		return nil
	}
	c := chromedp.FromContext(b.tabCtx)

	infos, err := chromedp.Targets(b.tabCtx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	execCtx := cdp.WithExecutor(ctx, c.Browser)

	g, gctx := errgroup.WithContext(execCtx)
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		id := info.TargetID
		g.Go(func() error {
			if err := target.CloseTarget(id).Do(gctx); err != nil && !IsSessionInterrupted(err) {
				return fmt.Errorf("close page %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// IsSessionInterrupted reports whether err means the browser session went away
// (canceled, timed out, or the target was closed underneath us).
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket: close", "no such target"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
