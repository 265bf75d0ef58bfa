package ingest

import (
	"fmt"

	"github.com/hillcrestdata/getitdone-etl/internal/domain"
)

// Source is one downloadable CSV export on the open-data portal.
type Source struct {
	// Name keys the raw file on disk: <Name>.csv under the raw directory.
	Name string
	URL  string
}

// Catalog lists every source the portal publishes: the open-requests export
// plus one closed-requests export per year from startYear through the current
// year. The current year comes from the domain clock so tests can freeze it.
func Catalog(baseURL string, startYear int) []Source {
	sources := []Source{{
		Name: "open",
		URL:  fmt.Sprintf("%s/get_it_done_requests_open_datasd.csv", baseURL),
	}}

	for year := startYear; year <= domain.Now().Year(); year++ {
		sources = append(sources, Source{
			Name: fmt.Sprintf("closed_%d", year),
			URL:  fmt.Sprintf("%s/get_it_done_requests_closed_%d_datasd.csv", baseURL, year),
		})
	}

	return sources
}
