package cli

import (
	"context"
	"fmt"
	"io"

	"tradejournal/internal/adapters/logger"
	"tradejournal/internal/adapters/sqlite"
	"tradejournal/internal/app"
	"tradejournal/internal/fees"
	"tradejournal/internal/pnl"
	"tradejournal/internal/risk"
	"tradejournal/internal/validation"
)

// stack is one fully wired journal: logger, database and service.
type stack struct {
	logger  *logger.StdLogger
	repo    *sqlite.Repository
	journal *app.JournalService
	closers []io.Closer
}

// open builds the journal stack for a single command invocation.
// Callers must Close the returned stack.
func (rc *RootConfig) open(ctx context.Context, stderr io.Writer) (*stack, error) {
	cfg := rc.Config
	s := &stack{}

	// 1. Logger
	level := logger.ParseLevel(rc.LogLevel)
	if cfg.LogFile != "" {
		l, closer, err := logger.NewFileLogger(level, logger.FileOptions{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
		})
		if err != nil {
			return nil, err
		}
		s.logger = l
		s.closers = append(s.closers, closer)
	} else {
		s.logger = logger.NewLogger(level, stderr)
	}

	// 2. Repository
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: rc.DBPath, Logger: s.logger})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize database repository: %w", err)
	}
	s.repo = repo
	s.closers = append(s.closers, repo)

	// 3. Fee tables
	tables := fees.DefaultTables()
	if cfg.FeeSchedulePath != "" {
		tables, err = fees.LoadTables(cfg.FeeSchedulePath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.logger.Debug(ctx, "Fee schedule loaded", map[string]interface{}{"path": cfg.FeeSchedulePath})
	}
	registry := fees.NewRegistry(tables)

	// 4. Calculators and service
	engine := risk.NewEngine(risk.Config{Location: cfg.Location, Logger: s.logger})
	validator, err := validation.New(validation.Config{
		Trades:   repo,
		Accounts: repo,
		Registry: registry,
		Engine:   engine,
		Logger:   s.logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.journal, err = app.NewJournalService(s.logger, registry, pnl.NewCalculator(registry, s.logger), engine, validator, repo, repo)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *stack) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
