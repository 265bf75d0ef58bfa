package duckdb_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hillcrestdata/getitdone-etl/internal/config"
	"github.com/hillcrestdata/getitdone-etl/internal/domain"
	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/require"
)

// newTestConfig returns a config rooted at a fresh temp dir with a permissive
// drop threshold.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:         t.TempDir(),
		MaxDropFraction: 0.25,
	}
}

// writeRawCSV marshals portal-shaped rows into <rawDir>/<name>.csv.
func writeRawCSV(t *testing.T, cfg *config.Config, name string, rows []domain.RawRow) {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.RawDir(), 0o755))

	data, err := csvutil.Marshal(rows)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.RawDir(), name+".csv"), data, 0o644))
}

func osMkdirWrite(dir, name, content string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}

// closedRow builds a closed request resolved resolutionDays after submission.
func closedRow(id, serviceName string, requested time.Time, resolutionDays int) domain.RawRow {
	closed := requested.Add(time.Duration(resolutionDays) * 24 * time.Hour)
	return domain.RawRow{
		ServiceRequestID: id,
		DateRequested:    requested.Format("2006-01-02 15:04:05"),
		DateClosed:       closed.Format("2006-01-02 15:04:05"),
		Status:           "Closed",
		ServiceName:      serviceName,
		CaseOrigin:       "Mobile",
		Lat:              "32.7341",
		Lng:              "-117.1446",
		CouncilDistrict:  "3",
		CommPlanName:     "Balboa Park",
	}
}

// openRow builds a still-open request.
func openRow(id, serviceName string, requested time.Time) domain.RawRow {
	return domain.RawRow{
		ServiceRequestID: id,
		DateRequested:    requested.Format("2006-01-02 15:04:05"),
		Status:           "Open",
		ServiceName:      serviceName,
		CaseOrigin:       "Web",
		Lat:              "32.7341",
		Lng:              "-117.1446",
		CouncilDistrict:  "3",
		CommPlanName:     "Balboa Park",
	}
}
