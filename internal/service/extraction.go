// Package service implements the extraction façade: access gating,
// exclusion loading, scan orchestration, delivery and usage accounting.
package service

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kuichiro/combogen/internal/command"
	"github.com/kuichiro/combogen/internal/corpus"
	"github.com/kuichiro/combogen/internal/ledger"
	"github.com/kuichiro/combogen/internal/logger"
	"github.com/kuichiro/combogen/internal/model"
)

// Scanner runs one scan request to completion or supersession.
type Scanner interface {
	Run(ctx context.Context, req model.ScanRequest) ([]model.AccountRecord, error)
}

// GenerateParams describes one extraction request.
type GenerateParams struct {
	RequesterID int64
	DisplayName string
	Keyword     string
	Quota       int
	OutputName  string
}

// Extraction is the façade in front of the scan engine. Every entry
// point validates the caller's grant before doing any work.
type Extraction struct {
	ledger   *ledger.Ledger
	registry *command.Registry
	corpus   *corpus.Corpus
	scanner  Scanner
	archive  model.Storage
	limiter  *rate.Limiter
	logger   *logger.Logger
}

// NewExtraction creates the façade. archive may be nil to disable
// object-storage archival, limiter may be nil to disable the anti-flood
// delivery pause.
func NewExtraction(
	l *ledger.Ledger,
	registry *command.Registry,
	c *corpus.Corpus,
	scanner Scanner,
	archive model.Storage,
	limiter *rate.Limiter,
	log *logger.Logger,
) *Extraction {
	return &Extraction{
		ledger:   l,
		registry: registry,
		corpus:   c,
		scanner:  scanner,
		archive:  archive,
		limiter:  limiter,
		logger:   log,
	}
}

// Generate runs one extraction end to end: it supersedes any in-flight
// command of the requester, scans the corpus and, unless superseded
// itself, persists the result as a delivered file and records usage.
// A superseded run leaves no trace: no delivered file, no history entry.
func (s *Extraction) Generate(ctx context.Context, params GenerateParams) (model.Summary, []model.AccountRecord, error) {
	if params.Quota <= 0 {
		return model.Summary{}, nil, model.ErrInvalidQuota
	}
	if err := s.ledger.Validate(ctx, params.RequesterID); err != nil {
		return model.Summary{}, nil, err
	}

	token := s.registry.Mint(params.RequesterID)
	exclusion := s.corpus.LoadDelivered()

	req := model.ScanRequest{
		RequesterID: params.RequesterID,
		Keyword:     params.Keyword,
		Quota:       params.Quota,
		Exclusion:   exclusion,
		Token:       token,
	}

	records, err := s.scanner.Run(ctx, req)
	if err != nil {
		return model.Summary{}, nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return model.Summary{}, nil, fmt.Errorf("delivery pause interrupted: %w", err)
		}
	}

	// A newer command may have arrived during the pause; its exclusion
	// view must not be polluted by this one's output.
	if !s.registry.IsCurrent(params.RequesterID, token) {
		return model.Summary{}, nil, model.ErrSuperseded
	}

	path, err := s.corpus.WriteDelivered(params.OutputName, records)
	if err != nil {
		return model.Summary{}, nil, fmt.Errorf("failed to persist delivered file: %w", err)
	}

	if s.archive != nil {
		s.archiveDelivered(ctx, params.OutputName, records)
	}

	if err := s.ledger.RecordUsage(ctx, params.RequesterID, params.DisplayName, len(records)); err != nil {
		s.logger.Error("failed to record usage", "user_id", params.RequesterID, "error", err)
	}

	s.logger.Info("extraction delivered",
		"user_id", params.RequesterID,
		"keyword", params.Keyword,
		"lines", len(records),
		"path", path)

	return model.Summary{
		Name:       params.OutputName,
		Timestamp:  time.Now(),
		TotalLines: len(records),
	}, records, nil
}

// CountAvailable reports how many raw corpus lines contain the keyword
// and are not yet delivered.
func (s *Extraction) CountAvailable(ctx context.Context, requesterID int64, keyword string) (int, error) {
	if err := s.ledger.Validate(ctx, requesterID); err != nil {
		return 0, err
	}

	raw, delivered := s.corpus.CountKeyword(keyword)
	available := raw - delivered
	if available < 0 {
		available = 0
	}
	return available, nil
}

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const maxInvalidSamples = 10

// AuditDelivered validates the identifiers of one delivered file
// against an email shape and reports the split.
func (s *Extraction) AuditDelivered(ctx context.Context, requesterID int64, name string) (model.AuditReport, error) {
	if err := s.ledger.Validate(ctx, requesterID); err != nil {
		return model.AuditReport{}, err
	}

	lines, err := s.corpus.ReadDeliveredLines(name)
	if err != nil {
		return model.AuditReport{}, err
	}

	var report model.AuditReport
	for _, line := range lines {
		identifier, _, _ := strings.Cut(line, ":")
		identifier = strings.TrimSpace(identifier)
		if emailShape.MatchString(identifier) {
			report.Valid++
			continue
		}
		report.Invalid++
		if len(report.InvalidSamples) < maxInvalidSamples {
			report.InvalidSamples = append(report.InvalidSamples, identifier)
		}
	}
	return report, nil
}

func (s *Extraction) archiveDelivered(ctx context.Context, name string, records []model.AccountRecord) {
	var buf bytes.Buffer
	for i, record := range records {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(string(record))
	}

	key := fmt.Sprintf("delivered/%s-%s", uuid.New().String(), name)
	if err := s.archive.Upload(ctx, key, &buf); err != nil {
		s.logger.Error("failed to archive delivered file", "key", key, "error", err)
		return
	}
	s.logger.Info("delivered file archived", "key", key)
}
