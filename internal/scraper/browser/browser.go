// Package browser starts headless Chrome sessions for the scraping jobs and
// provides the page actions they share.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"b3collect/internal/config"
	"b3collect/internal/errors"
)

// ClickAttempts is how many times Click tries before giving up
const ClickAttempts = 3

// Session is one Chrome process with a single tab
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     config.BrowserConfig
	logger  *slog.Logger
	started bool
}

// NewSession starts Chrome with the window size, user agent and headless mode of cfg.
// The browser lives until Close or until parent is cancelled.
func NewSession(parent context.Context, cfg config.BrowserConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", slog.String("message", fmt.Sprintf(format, args...)))
		}))

	return &Session{
		ctx: ctx,
		cancel: func() {
			cancelCtx()
			cancelAlloc()
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Run executes actions in the session's tab. A cancelled parent aborts them.
func (s *Session) Run(parent context.Context, actions ...chromedp.Action) error {
	// the first Run binds the browser to its context, so it must be the
	// session context and not a derived one
	if !s.started {
		if err := chromedp.Run(s.ctx); err != nil {
			return errors.NewBrowserError("start chrome", err)
		}
		s.started = true
	}

	ctx, stop := context.WithCancel(s.ctx)
	defer stop()
	unlink := context.AfterFunc(parent, stop)
	defer unlink()

	if err := chromedp.Run(ctx, actions...); err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		return errors.NewBrowserError("browser actions failed", err)
	}
	return nil
}

// Close terminates the browser
func (s *Session) Close() {
	s.cancel()
}

// WaitTimeout is how long a single step waits for its element
func (s *Session) WaitTimeout() time.Duration {
	return s.cfg.WaitTimeout
}

// AllowDownloads saves downloads into dir under their suggested names
func AllowDownloads(dir string) chromedp.Action {
	return browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir).
		WithEventsEnabled(true)
}

// Click clicks the first element matching the CSS selector sel. When the
// native click fails it falls back to a JavaScript click, and the pair is
// tried up to ClickAttempts times one second apart. Each native attempt waits
// at most timeout for the element.
func Click(sel string, timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var lastErr error
		for attempt := 1; attempt <= ClickAttempts; attempt++ {
			err := clickOnce(ctx, sel, timeout)
			if err == nil {
				return nil
			}
			lastErr = err

			if err = jsClick(sel).Do(ctx); err == nil {
				return nil
			}
			lastErr = err

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempt < ClickAttempts {
				if err := chromedp.Sleep(time.Second).Do(ctx); err != nil {
					return err
				}
			}
		}
		return fmt.Errorf("click %s: %w", sel, lastErr)
	})
}

func clickOnce(ctx context.Context, sel string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Tasks{
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	}.Do(ctx)
}

// jsClick clicks sel through the DOM and fails when nothing matches
func jsClick(sel string) chromedp.Action {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return false; }
		el.click();
		return true;
	})()`, strconv.Quote(sel))

	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked bool
		if err := chromedp.Evaluate(script, &clicked).Do(ctx); err != nil {
			return err
		}
		if !clicked {
			return fmt.Errorf("no element matches %s", sel)
		}
		return nil
	})
}

// ClickIfVisible clicks sel only when it is displayed, which is how ad
// overlays are dismissed. A missing element is not an error.
func ClickIfVisible(sel string) chromedp.Action {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el || el.offsetParent === null) { return false; }
		el.click();
		return true;
	})()`, strconv.Quote(sel))

	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked bool
		return chromedp.Evaluate(script, &clicked).Do(ctx)
	})
}

// Timed runs act and logs how long it took
func Timed(logger *slog.Logger, name string, act chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		start := time.Now()
		err := act.Do(ctx)
		logger.Debug("Browser step finished",
			slog.String("step", name),
			slog.Duration("duration", time.Since(start)),
			slog.Bool("ok", err == nil))
		return err
	})
}
