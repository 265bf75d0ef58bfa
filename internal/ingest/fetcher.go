package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hillcrestdata/getitdone-etl/internal/observability"
)

// FetchResult records the outcome of one source download.
type FetchResult struct {
	Source  Source
	Path    string
	Bytes   int64
	Skipped bool
	Err     error
}

// Fetcher downloads source CSVs into the raw directory. Each source is
// independent: a failed download is recorded in its result and never aborts
// the remaining sources.
type Fetcher struct {
	sources     []Source
	rawDir      string
	client      *http.Client
	concurrency int
	force       bool
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewFetcher creates a Fetcher over the given source catalog.
func NewFetcher(sources []Source, rawDir string, timeout time.Duration, concurrency int, force bool, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		sources:     sources,
		rawDir:      rawDir,
		client:      &http.Client{Timeout: timeout},
		concurrency: concurrency,
		force:       force,
		logger:      logger,
		metrics:     metrics,
	}
}

// FetchAll downloads every source, at most concurrency at a time. Results come
// back in catalog order. Sources whose raw file already exists non-empty are
// skipped unless the fetcher was created with force.
func (f *Fetcher) FetchAll(ctx context.Context) []FetchResult {
	if err := os.MkdirAll(f.rawDir, 0o755); err != nil {
		results := make([]FetchResult, len(f.sources))
		for i, src := range f.sources {
			results[i] = FetchResult{Source: src, Err: fmt.Errorf("create raw dir: %w", err)}
		}
		return results
	}

	results := make([]FetchResult, len(f.sources))
	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup

	for i, src := range f.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = f.fetchOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	for _, r := range results {
		switch {
		case r.Err != nil:
			f.metrics.SourcesFailed.Inc()
			f.logger.Warn("source fetch failed", "source", r.Source.Name, "error", r.Err)
		case r.Skipped:
			f.metrics.SourcesSkipped.Inc()
			f.logger.Info("source skipped, raw file exists", "source", r.Source.Name, "path", r.Path)
		default:
			f.metrics.SourcesFetched.Inc()
			f.metrics.BytesFetched.Add(float64(r.Bytes))
			f.logger.Info("source fetched", "source", r.Source.Name, "path", r.Path, "bytes", r.Bytes)
		}
	}

	return results
}

// fetchOne downloads a single source, streaming to a .part file and renaming
// on success so a partial download is never mistaken for a finished export.
func (f *Fetcher) fetchOne(ctx context.Context, src Source) FetchResult {
	dest := filepath.Join(f.rawDir, src.Name+".csv")
	result := FetchResult{Source: src, Path: dest}

	if !f.force {
		if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
			result.Skipped = true
			result.Bytes = info.Size()
			return result
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		result.Err = fmt.Errorf("create request: %w", err)
		return result
	}

	resp, err := f.client.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("get %s: %w", src.URL, err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Err = fmt.Errorf("get %s: status %d", src.URL, resp.StatusCode)
		return result
	}

	part := dest + ".part"
	n, err := writeStream(part, resp.Body)
	if err != nil {
		os.Remove(part)
		result.Err = fmt.Errorf("write %s: %w", part, err)
		return result
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		result.Err = fmt.Errorf("finalize %s: %w", dest, err)
		return result
	}

	result.Bytes = n
	return result
}

func writeStream(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return n, err
}
