package investing

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"b3collect/internal/errors"
	"b3collect/internal/market"
)

// calendarColumns is the cell count of an event row: flag, company, ex-date,
// dividend, type, payment date, yield
const calendarColumns = 7

// ParseCalendar extracts the events of the calendar table markup. Day
// separator rows (class theDay) and rows without exactly seven cells are
// skipped. A table without events yields an empty slice.
func ParseCalendar(html string) ([]market.DividendEvent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.NewParsingError("parse dividend calendar", err)
	}

	events := []market.DividendEvent{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("theDay") {
			return
		}
		cells := row.Find("td")
		if cells.Length() != calendarColumns {
			return
		}
		text := func(i int) string {
			return cleanText(cells.Eq(i).Text())
		}
		events = append(events, market.DividendEvent{
			Company:   text(1),
			ExDate:    text(2),
			Dividend:  text(3),
			Type:      text(4),
			PayDate:   text(5),
			YieldRate: text(6),
		})
	})
	return events, nil
}

// cleanText collapses the whitespace of rendered cell text
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
