// Package corpus enumerates and reads the line-oriented text corpora:
// the append-only raw root that extraction scans, and the delivered root
// that holds previously generated results and doubles as the exclusion
// corpus.
package corpus

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kuichiro/combogen/internal/logger"
	"github.com/kuichiro/combogen/internal/model"
)

// Corpus provides access to the two corpus roots.
type Corpus struct {
	rawDir       string
	deliveredDir string
	logger       *logger.Logger
}

// New creates a Corpus over the given roots. Roots are created lazily on
// first write; a missing root is treated as empty on reads.
func New(rawDir, deliveredDir string, log *logger.Logger) *Corpus {
	return &Corpus{
		rawDir:       rawDir,
		deliveredDir: deliveredDir,
		logger:       log,
	}
}

// Candidates lists every *.txt file under both roots, most recently
// modified first. Recency ordering is a heuristic, not a guarantee.
func (c *Corpus) Candidates() []string {
	type entry struct {
		path    string
		modTime time.Time
	}

	var entries []entry
	for _, root := range []string{c.deliveredDir, c.rawDir} {
		for _, path := range c.listTextFiles(root) {
			info, err := os.Stat(path)
			if err != nil {
				c.logger.Warn("failed to stat corpus file, skipping", "path", path, "error", err)
				continue
			}
			entries = append(entries, entry{path: path, modTime: info.ModTime()})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime.After(entries[j].modTime) })

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.path
	}
	return paths
}

// LoadDelivered reads every line of every delivered file into a set,
// trimmed and verbatim. Unreadable files are logged and skipped; the
// load itself never fails.
func (c *Corpus) LoadDelivered() map[string]struct{} {
	delivered := make(map[string]struct{})
	for _, path := range c.listTextFiles(c.deliveredDir) {
		if err := c.readLines(path, func(line string) {
			delivered[line] = struct{}{}
		}); err != nil {
			c.logger.Warn("failed to read delivered file, skipping", "path", path, "error", err)
		}
	}
	return delivered
}

// WriteDelivered persists records as a newline-joined blob under the
// delivered root. The write goes through a temp file and a rename so a
// failure never leaves a partial delivered file behind.
func (c *Corpus) WriteDelivered(name string, records []model.AccountRecord) (string, error) {
	if err := os.MkdirAll(c.deliveredDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create delivered dir: %w", err)
	}

	name = filepath.Base(name)
	target := filepath.Join(c.deliveredDir, name)

	tmp, err := os.CreateTemp(c.deliveredDir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for i, record := range records {
		if i > 0 {
			if _, err := w.WriteString("\n"); err != nil {
				tmp.Close()
				return "", fmt.Errorf("failed to write record: %w", err)
			}
		}
		if _, err := w.WriteString(string(record)); err != nil {
			tmp.Close()
			return "", fmt.Errorf("failed to write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to move delivered file into place: %w", err)
	}
	return target, nil
}

// ReadDeliveredLines returns the non-empty trimmed lines of one
// delivered file. Missing files report model.ErrNotFound.
func (c *Corpus) ReadDeliveredLines(name string) ([]string, error) {
	path := filepath.Join(c.deliveredDir, filepath.Base(name))

	var lines []string
	if err := c.readLines(path, func(line string) {
		if line != "" {
			lines = append(lines, line)
		}
	}); err != nil {
		if os.IsNotExist(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read delivered file: %w", err)
	}
	return lines, nil
}

// CountKeyword counts case-insensitive keyword occurrences per line
// across the raw and delivered roots. Unreadable files are logged and
// skipped.
func (c *Corpus) CountKeyword(keyword string) (raw int, delivered int) {
	keyword = strings.ToLower(keyword)

	count := func(root string) int {
		total := 0
		for _, path := range c.listTextFiles(root) {
			if err := c.readLines(path, func(line string) {
				if strings.Contains(strings.ToLower(line), keyword) {
					total++
				}
			}); err != nil {
				c.logger.Warn("failed to read corpus file, skipping", "path", path, "error", err)
			}
		}
		return total
	}

	return count(c.rawDir), count(c.deliveredDir)
}

func (c *Corpus) listTextFiles(root string) []string {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			c.logger.Warn("failed to walk corpus dir, skipping entry", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to walk corpus root", "root", root, "error", err)
	}
	return paths
}

func (c *Corpus) readLines(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(strings.TrimSpace(scanner.Text()))
	}
	return scanner.Err()
}
