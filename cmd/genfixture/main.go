// Command genfixture writes synthetic Get It Done raw CSVs shaped like the
// open-data portal exports, so the pipeline and dashboard can be exercised
// without downloading the real multi-gigabyte dataset. Output is seeded and
// reproducible, and includes a small fraction of dirty rows (missing IDs,
// unparseable dates, duplicate requests) so the cleaning stage has work to do.
//
// Usage:
//
//	go run ./cmd/genfixture -out data/raw -rows 5000 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jszwec/csvutil"

	"github.com/hillcrestdata/getitdone-etl/internal/domain"
)

var serviceNames = []string{
	"Pothole",
	"Graffiti - Public",
	"Missed Collection",
	"Encampment",
	"Street Light Maintenance",
	"Sidewalk Repair Issue",
	"Illegal Dumping",
	"Tree Maintenance",
	"Parking Zone Violation",
	"Storm Drain",
}

// neighborhoods pair a community plan name with its council district.
var neighborhoods = []struct {
	name     string
	district int
}{
	{"Barrio Logan", 8},
	{"Clairemont Mesa", 6},
	{"College Area", 9},
	{"Downtown", 3},
	{"La Jolla", 1},
	{"Linda Vista", 7},
	{"Mira Mesa", 6},
	{"North Park", 3},
	{"Otay Mesa", 8},
	{"Pacific Beach", 2},
	{"San Ysidro", 8},
	{"Skyline-Paradise Hills", 4},
	{"Tierrasanta", 7},
	{"University City", 1},
	{"Uptown", 3},
}

var caseOrigins = []string{"Mobile", "Web", "Phone", "Email"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data/raw", "output directory for raw CSVs")
	rowsPerFile := flag.Int("rows", 5000, "rows per generated file")
	seed := flag.Int64("seed", 42, "random seed for reproducible output")
	startYear := flag.Int("start-year", 2021, "first closed-requests year to generate")
	endYear := flag.Int("end-year", 2024, "last closed-requests year to generate")
	flag.Parse()

	if *startYear > *endYear {
		return fmt.Errorf("start-year %d after end-year %d", *startYear, *endYear)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	nextID := 1000000

	for year := *startYear; year <= *endYear; year++ {
		rows := make([]domain.RawRow, 0, *rowsPerFile)
		for i := 0; i < *rowsPerFile; i++ {
			rows = append(rows, makeRow(rng, &nextID, year, true))
		}
		name := fmt.Sprintf("get_it_done_requests_closed_%d_datasd.csv", year)
		if err := writeCSV(filepath.Join(*outDir, name), rows); err != nil {
			return err
		}
		log.Printf("wrote %s (%d rows)", name, len(rows))
	}

	rows := make([]domain.RawRow, 0, *rowsPerFile)
	for i := 0; i < *rowsPerFile; i++ {
		rows = append(rows, makeRow(rng, &nextID, *endYear, false))
	}
	name := "get_it_done_requests_open_datasd.csv"
	if err := writeCSV(filepath.Join(*outDir, name), rows); err != nil {
		return err
	}
	log.Printf("wrote %s (%d rows)", name, len(rows))
	return nil
}

// makeRow generates one portal-shaped row. Roughly 3% of rows are dirty in
// one of the ways the real exports are.
func makeRow(rng *rand.Rand, nextID *int, year int, closed bool) domain.RawRow {
	nb := neighborhoods[rng.Intn(len(neighborhoods))]
	requested := time.Date(year, time.Month(1+rng.Intn(12)), 1+rng.Intn(28),
		rng.Intn(24), rng.Intn(60), 0, 0, time.UTC)

	id := *nextID
	*nextID++

	row := domain.RawRow{
		ServiceRequestID: fmt.Sprintf("%d", id),
		DateRequested:    requested.Format("2006-01-02 15:04:05"),
		Status:           "Open",
		ServiceName:      serviceNames[rng.Intn(len(serviceNames))],
		CaseOrigin:       caseOrigins[rng.Intn(len(caseOrigins))],
		Lat:              fmt.Sprintf("%.6f", domain.SDLatMin+rng.Float64()*(domain.SDLatMax-domain.SDLatMin)),
		Lng:              fmt.Sprintf("%.6f", domain.SDLngMin+rng.Float64()*(domain.SDLngMax-domain.SDLngMin)),
		CouncilDistrict:  fmt.Sprintf("%d", nb.district),
		CommPlanName:     nb.name,
		Zipcode:          fmt.Sprintf("921%02d", rng.Intn(100)),
	}
	if closed {
		resolution := rng.Intn(90)
		row.Status = "Closed"
		row.DateClosed = requested.Add(time.Duration(resolution) * 24 * time.Hour).Format("2006-01-02 15:04:05")
	}

	switch rng.Intn(100) {
	case 0:
		row.ServiceRequestID = ""
	case 1:
		row.DateRequested = "not a date"
	case 2:
		row.Lat, row.Lng = "", ""
	}
	return row
}

func writeCSV(path string, rows []domain.RawRow) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
