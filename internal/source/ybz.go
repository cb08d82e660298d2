package source

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/venue-events/internal/event"
)

const (
	YadBenZviName     = "ybz"
	YadBenZviBaseURL  = "https://www.ybz.org.il"
	YadBenZviURL      = "https://www.ybz.org.il/?CategoryID=141"
	YadBenZviSource   = "יד בן צבי"
	YadBenZviLocation = "אבן גבירול 14, ירושלים"
)

// parseYadBenZvi reads the lectures list. Rows without a date cell are
// layout rows and are skipped. All events take place at the institute, so
// every tuple carries the same location.
func parseYadBenZvi(doc *goquery.Document, base *url.URL, location string) []event.Raw {
	raws := make([]event.Raw, 0)
	doc.Find(".EventListRow").Each(func(_ int, row *goquery.Selection) {
		date := row.Find(".EventListDate")
		if date.Length() == 0 {
			return
		}

		title := row.Find("a.EventsListTitle").First()
		href, _ := title.Attr("href")

		raws = append(raws, event.Raw{
			Title:       title.Text(),
			Description: row.Find(".EventListInfo").First().Text(),
			Source:      YadBenZviSource,
			StartRaw:    date.First().Text(),
			RawLocation: location,
			URL:         resolveHref(base, href),
		})
	})
	return raws
}
