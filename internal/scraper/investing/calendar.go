// Package investing reads the Brazilian dividend calendar of br.investing.com
// through a headless browser.
package investing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	"b3collect/internal/config"
	"b3collect/internal/errors"
	"b3collect/internal/infrastructure"
	"b3collect/internal/market"
	"b3collect/internal/scraper/browser"
)

// Page elements of the calendar
const (
	overlayClose    = ".popupCloseIcon"
	filterToggle    = "#filterStateAnchor"
	countryFilter   = "#calendarFilterBox_country"
	countryApply    = "#ecSubmitButton"
	datePickerBtn   = "#datePickerToggleBtn"
	datePicker      = "#ui-datepicker-div"
	startDateInput  = "#startDate"
	endDateInput    = "#endDate"
	dateApply       = "#applyBtn"
	calendarTable   = "#dividendsCalendarData"
	inputDateLayout = "02/01/2006"
)

// Calendar fetches dividend events. It implements market.DividendFetcher.
// Every call opens its own browser session.
type Calendar struct {
	url         string
	countryID   string
	settleDelay time.Duration
	browser     config.BrowserConfig
	logger      *slog.Logger
}

var _ market.DividendFetcher = (*Calendar)(nil)

// NewCalendar creates a Calendar for the datacom and browser configuration
func NewCalendar(cfg config.DataComConfig, browserCfg config.BrowserConfig, logger *slog.Logger) *Calendar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calendar{
		url:         cfg.URL,
		countryID:   cfg.CountryID,
		settleDelay: cfg.SettleDelay,
		browser:     browserCfg,
		logger:      infrastructure.WithComponent(logger, "investing"),
	}
}

// FetchDividends filters the calendar to the configured country and to
// [from, to], waits for the page to settle and returns the listed events.
func (c *Calendar) FetchDividends(ctx context.Context, from, to time.Time) ([]market.DividendEvent, error) {
	session := browser.NewSession(ctx, c.browser, c.logger)
	defer session.Close()

	wait := session.WaitTimeout()
	var html string

	err := session.Run(ctx,
		browser.Timed(c.logger, "navigate", chromedp.Navigate(c.url)),
		browser.ClickIfVisible(overlayClose),
		browser.Timed(c.logger, "select_country", c.selectCountry(wait)),
		browser.Timed(c.logger, "select_dates", selectDates(from, to, wait)),
		chromedp.Sleep(c.settleDelay),
		browser.Timed(c.logger, "read_table", readTable(&html, wait)),
	)
	if err != nil {
		return nil, err
	}

	events, err := ParseCalendar(html)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "Dividend calendar read",
		slog.String("from", from.Format(time.DateOnly)),
		slog.String("to", to.Format(time.DateOnly)),
		slog.Int("events", len(events)))
	return events, nil
}

// selectCountry leaves only the configured country checked in the filter box
func (c *Calendar) selectCountry(wait time.Duration) chromedp.Action {
	script := fmt.Sprintf(`(() => {
		const keep = %s;
		document.querySelectorAll('input[name="country[]"]').forEach(cb => {
			if (cb.checked !== (cb.id === keep)) {
				cb.scrollIntoView(true);
				cb.click();
			}
		});
		return document.getElementById(keep) !== null;
	})()`, strconv.Quote(c.countryID))

	return chromedp.Tasks{
		browser.Click(filterToggle, wait),
		waitReady(countryFilter, wait),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var found bool
			if err := chromedp.Evaluate(script, &found).Do(ctx); err != nil {
				return err
			}
			if !found {
				return errors.NewBrowserError(fmt.Sprintf("country checkbox %s not found", c.countryID), nil)
			}
			return nil
		}),
		browser.Click(countryApply, wait),
	}
}

func selectDates(from, to time.Time, wait time.Duration) chromedp.Action {
	return chromedp.Tasks{
		browser.Click(datePickerBtn, wait),
		waitReady(datePicker, wait),
		chromedp.Clear(startDateInput, chromedp.ByID),
		chromedp.SendKeys(startDateInput, from.Format(inputDateLayout), chromedp.ByID),
		chromedp.Clear(endDateInput, chromedp.ByID),
		chromedp.SendKeys(endDateInput, to.Format(inputDateLayout), chromedp.ByID),
		browser.ClickIfVisible(overlayClose),
		browser.Click(dateApply, wait),
	}
}

func readTable(html *string, wait time.Duration) chromedp.Action {
	return chromedp.Tasks{
		waitReady(calendarTable, wait),
		chromedp.OuterHTML(calendarTable, html, chromedp.ByID),
	}
}

// waitReady waits at most timeout for sel to be in the DOM
func waitReady(sel string, timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return chromedp.WaitReady(sel, chromedp.ByQuery).Do(ctx)
	})
}
