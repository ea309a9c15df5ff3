// Package scan implements the concurrent, cancellable extraction engine.
// A bounded worker pool scans candidate files line by line, parses
// credential pairs, dedups locally and merges into one global set until
// the quota or the corpus is exhausted.
package scan

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kuichiro/combogen/internal/command"
	"github.com/kuichiro/combogen/internal/corpus"
	"github.com/kuichiro/combogen/internal/logger"
	"github.com/kuichiro/combogen/internal/model"
)

const defaultWorkers = 4

// Coordinator fans a scan request out across a fixed-size worker pool.
type Coordinator struct {
	corpus   *corpus.Corpus
	registry *command.Registry
	workers  int
	logger   *logger.Logger
}

// NewCoordinator creates a Coordinator. workers <= 0 selects the default
// pool size.
func NewCoordinator(c *corpus.Corpus, registry *command.Registry, workers int, log *logger.Logger) *Coordinator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Coordinator{
		corpus:   c,
		registry: registry,
		workers:  workers,
		logger:   log,
	}
}

// Run executes one scan. It returns at most req.Quota records, none of
// which appear in req.Exclusion, all pairwise distinct, each extracted
// from a line containing the keyword case-insensitively. Result order is
// unspecified. If the request's token is superseded at any point, Run
// returns model.ErrSuperseded and the accumulated set is discarded, even
// when it is already complete.
func (c *Coordinator) Run(ctx context.Context, req model.ScanRequest) ([]model.AccountRecord, error) {
	if req.Quota <= 0 {
		return nil, model.ErrInvalidQuota
	}

	files := c.corpus.Candidates()
	keyword := strings.ToLower(req.Keyword)

	var (
		mu      sync.Mutex
		results = make(map[model.AccountRecord]struct{})
	)
	full := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= req.Quota
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, path := range files {
		// SetLimit blocks here until a worker slot frees up, so this
		// check also abandons all not-yet-started work once the quota
		// is reached or the command goes stale.
		if full() || gctx.Err() != nil {
			break
		}
		if !c.registry.IsCurrent(req.RequesterID, req.Token) {
			break
		}

		path := path
		g.Go(func() error {
			local, err := c.scanFile(gctx, path, keyword, req)
			if err != nil {
				if errors.Is(err, model.ErrSuperseded) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				c.logger.Warn("failed to scan corpus file, skipping", "path", path, "error", err)
				return nil
			}

			// Merge is the only synchronized step; workers race freely
			// up to here. Dedup again: different files may yield the
			// same record.
			mu.Lock()
			for record := range local {
				if len(results) >= req.Quota {
					break
				}
				results[record] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, model.ErrSuperseded) {
			return nil, model.ErrSuperseded
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A stale command must never return data attributable to the command
	// that superseded it, complete result set or not.
	if !c.registry.IsCurrent(req.RequesterID, req.Token) {
		return nil, model.ErrSuperseded
	}

	out := make([]model.AccountRecord, 0, min(len(results), req.Quota))
	for record := range results {
		if len(out) >= req.Quota {
			break
		}
		out = append(out, record)
	}
	return out, nil
}

// scanFile reads one file and returns its locally deduplicated matches.
// Token currency is re-checked on every line to bound time-to-abort.
func (c *Coordinator) scanFile(ctx context.Context, path, keyword string, req model.ScanRequest) (map[model.AccountRecord]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	local := make(map[model.AccountRecord]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if !c.registry.IsCurrent(req.RequesterID, req.Token) {
			return nil, model.ErrSuperseded
		}

		line := scanner.Text()
		if !strings.Contains(strings.ToLower(line), keyword) {
			continue
		}

		record, ok := ParseAccount(line)
		if !ok {
			continue
		}
		if _, excluded := req.Exclusion[string(record)]; excluded {
			continue
		}
		local[record] = struct{}{}

		// Local early stop at the global quota. An optimization only;
		// the merge still truncates globally.
		if len(local) >= req.Quota {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return local, nil
}
