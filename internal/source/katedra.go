package source

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/venue-events/internal/event"
)

const (
	KatedraName    = "katedra"
	KatedraBaseURL = "https://www.katedra.co.il"
	KatedraURL     = "https://www.katedra.co.il/%D7%90%D7%99%D7%A8%D7%95%D7%A2%D7%99%D7%9D_%D7%97%D7%93_%D7%A4%D7%A2%D7%9E%D7%99%D7%99%D7%9D"
	KatedraSource  = "הקתדרה"

	katedraSelector = `a[data-type="show"], a[data-type="event"]`
)

// parseKatedra reads the one-off events page. Every listing is an anchor
// whose title attribute holds the event name.
func parseKatedra(doc *goquery.Document, base *url.URL, _ string) []event.Raw {
	raws := make([]event.Raw, 0)
	doc.Find(katedraSelector).Each(func(_ int, sel *goquery.Selection) {
		title, _ := sel.Attr("title")
		href, _ := sel.Attr("href")

		raws = append(raws, event.Raw{
			Title:       title,
			Description: sel.Find("div.brief").First().Text(),
			Source:      KatedraSource,
			StartRaw:    collapseSpace(sel.Find("div.time_container").First().Text()),
			RawLocation: sel.Find("div.theater_container").First().Text(),
			URL:         resolveHref(base, href),
		})
	})
	return raws
}
