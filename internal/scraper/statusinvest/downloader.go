// Package statusinvest downloads the advanced-search indicator sheets of
// statusinvest.com.br, which are the ticker lists of the price jobs.
package statusinvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"b3collect/internal/config"
	"b3collect/internal/errors"
	"b3collect/internal/infrastructure"
	"b3collect/internal/files"
	"b3collect/internal/scraper/browser"
)

// Page elements of the advanced search
const (
	searchButton   = "#main-2 > div:nth-of-type(3) > div > div > div > button:nth-of-type(2)"
	popupClose     = ".btn-close"
	downloadButton = "div a.btn-download"
	pageSettle     = 2 * time.Second
	defaultPoll    = 500 * time.Millisecond
)

// Downloader fetches indicator sheets through a browser session
type Downloader struct {
	downloadName string
	timeout      time.Duration
	poll         time.Duration
	browserCfg   config.BrowserConfig
	discovery    *files.Discovery
	manager      *files.Manager
	logger       *slog.Logger

	// browse drives the page until the download starts. The returned func
	// closes the browser and must only be called once the file is complete.
	browse func(ctx context.Context, pageURL, dir string) (func(), error)
}

// NewDownloader creates a Downloader from the indicators and browser configuration
func NewDownloader(cfg config.IndicatorsConfig, browserCfg config.BrowserConfig, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Downloader{
		downloadName: cfg.DownloadName,
		timeout:      cfg.DownloadTimeout,
		poll:         defaultPoll,
		browserCfg:   browserCfg,
		discovery:    files.NewDiscovery(""),
		manager:      files.NewManager(logger),
		logger:       infrastructure.WithComponent(logger, "statusinvest"),
	}
	d.browse = d.runBrowser
	return d
}

// Download opens pageURL, exports the search result and stores it at target,
// replacing any previous file. The browser saves into target's directory.
func (d *Downloader) Download(ctx context.Context, pageURL, target string) error {
	dir := filepath.Dir(target)
	if err := d.manager.EnsureDirectory(dir); err != nil {
		return errors.NewStorageError("create indicators directory", err).WithContext("dir", dir)
	}

	// a leftover export would be taken for the new one
	staged := filepath.Join(dir, d.downloadName)
	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		return errors.NewStorageError("remove stale download", err).WithContext("file", staged)
	}

	start := time.Now()
	release, err := d.browse(ctx, pageURL, dir)
	if err != nil {
		return err
	}
	defer release()

	src, err := d.waitForFile(ctx, dir)
	if err != nil {
		return err
	}

	if err := d.manager.ReplaceFile(src, target); err != nil {
		return errors.NewStorageError("install indicator file", err).
			WithContext("src", src).
			WithContext("dst", target)
	}

	d.logger.InfoContext(ctx, "Indicator file downloaded",
		slog.String("url", pageURL),
		slog.String("file", target),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (d *Downloader) runBrowser(ctx context.Context, pageURL, dir string) (func(), error) {
	session := browser.NewSession(ctx, d.browserCfg, d.logger)

	wait := session.WaitTimeout()
	err := session.Run(ctx,
		browser.AllowDownloads(dir),
		browser.Timed(d.logger, "navigate", chromedp.Navigate(pageURL)),
		chromedp.Sleep(pageSettle),
		browser.Timed(d.logger, "search", browser.Click(searchButton, wait)),
		d.dismissPopup(wait),
		browser.Timed(d.logger, "download", browser.Click(downloadButton, wait)),
	)
	if err != nil {
		session.Close()
		return nil, err
	}
	return session.Close, nil
}

// dismissPopup closes the ad popup if it shows up within wait
func (d *Downloader) dismissPopup(wait time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()

		if err := chromedp.WaitVisible(popupClose, chromedp.ByQuery).Do(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Debug("No popup to close")
			return nil
		}
		return browser.ClickIfVisible(popupClose).Do(ctx)
	})
}

// waitForFile polls dir until the export appears or the timeout elapses.
// Chrome writes into a .crdownload file and renames it when done, so the
// export name only shows up complete.
func (d *Downloader) waitForFile(ctx context.Context, dir string) (string, error) {
	deadline := time.NewTimer(d.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(d.poll)
	defer tick.Stop()

	for {
		found, err := d.discovery.FindFilesByPattern(dir, d.downloadName)
		if err != nil {
			return "", err
		}
		if latest, ok := files.GetLatestFile(found); ok {
			return latest.Path, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", errors.NewBrowserError(
				fmt.Sprintf("download of %s did not finish within %s", d.downloadName, d.timeout), nil).
				WithContext("dir", dir)
		case <-tick.C:
		}
	}
}
