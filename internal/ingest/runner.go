package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/clerk/internal/dedup"
	"github.com/MikeSquared-Agency/clerk/internal/gateway"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// Committer is the gateway entry point every imported row goes through.
type Committer interface {
	Commit(ctx context.Context, r returns.Record) (gateway.Result, error)
}

// Announcer posts the final summary, typically to Slack.
type Announcer interface {
	PostThread(ctx context.Context, channel, threadTS, text string) (string, error)
}

// Config holds the import command configuration.
type Config struct {
	Files     []string
	StatePath string
	DryRun    bool
	// BatchSize is the number of rows between state saves.
	BatchSize int
}

// FileSummary counts the outcomes of one file.
type FileSummary struct {
	Path       string
	Inserted   int
	Duplicates int
	Skipped    int
	Errors     int
}

// Summary is the result of a run.
type Summary struct {
	Files      []FileSummary
	Inserted   int
	Duplicates int
	Skipped    int
	DryRun     bool
}

// Runner imports historical returns from CSV files through the commit
// gateway, so imported rows get the same validation and dedup as chat
// inserts.
type Runner struct {
	cfg       Config
	committer Committer
	announcer Announcer
	logger    *slog.Logger
}

// NewRunner creates an import runner. announcer may be nil.
func NewRunner(cfg Config, c Committer, announcer Announcer, logger *slog.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	return &Runner{cfg: cfg, committer: c, announcer: announcer, logger: logger}
}

// Run imports every configured file not already processed. Malformed and
// invalid rows are skipped, duplicates are counted, and a store outage stops
// the run with the state saved so the next run resumes at the failed row.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return Summary{}, fmt.Errorf("load state: %w", err)
	}

	sum := Summary{DryRun: r.cfg.DryRun}
	for _, path := range r.cfg.Files {
		path = expandHome(path)
		if state.IsProcessed(path) {
			r.logger.Info("skipping imported file", "path", path)
			continue
		}

		fs, err := r.importFile(ctx, path, state)
		sum.add(fs)
		if err != nil {
			if !r.cfg.DryRun {
				_ = state.Save()
			}
			return sum, err
		}

		if !r.cfg.DryRun {
			state.MarkProcessed(path)
			if err := state.Save(); err != nil {
				r.logger.Warn("failed to save import state", "error", err)
			}
		}
	}

	r.announce(ctx, sum)
	r.logger.Info("import complete",
		"files", len(sum.Files),
		"inserted", sum.Inserted,
		"duplicates", sum.Duplicates,
		"skipped", sum.Skipped,
		"dry_run", sum.DryRun,
	)
	return sum, nil
}

func (r *Runner) importFile(ctx context.Context, path string, state *State) (FileSummary, error) {
	fs := FileSummary{Path: path}

	f, err := os.Open(path)
	if err != nil {
		state.AddError(fmt.Sprintf("open %s: %v", path, err))
		fs.Errors++
		return fs, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rd, err := NewReader(f)
	if err != nil {
		state.AddError(fmt.Sprintf("parse %s: %v", path, err))
		fs.Errors++
		return fs, fmt.Errorf("parse %s: %w", path, err)
	}

	resume := state.Resume(path)
	r.logger.Info("importing file", "path", path, "resume_after_line", resume)

	sinceSave := 0
	for {
		if err := ctx.Err(); err != nil {
			return fs, err
		}

		row, err := rd.Next()
		if err == io.EOF {
			return fs, nil
		}
		if err != nil {
			fs.Errors++
			return fs, fmt.Errorf("read %s: %w", path, err)
		}
		if row.Line <= resume {
			continue
		}

		if row.Err != nil {
			r.logger.Warn("skipping malformed row", "path", path, "line", row.Line, "error", row.Err)
			state.AddError(fmt.Sprintf("%s:%d: %v", path, row.Line, row.Err))
			fs.Skipped++
			state.Skipped++
			state.Advance(path, row.Line)
			continue
		}

		if r.cfg.DryRun {
			if err := returns.Validate(row.Record); err != nil {
				fs.Skipped++
				continue
			}
			r.logger.Debug("dry run row", "line", row.Line, "dedup_key", dedup.Key(row.Record))
			fs.Inserted++
			continue
		}

		res, err := r.committer.Commit(ctx, row.Record)
		switch {
		case errors.Is(err, gateway.ErrStoreUnavailable):
			fs.Errors++
			state.AddError(fmt.Sprintf("%s:%d: %v", path, row.Line, err))
			return fs, fmt.Errorf("import %s line %d: %w", path, row.Line, err)
		case err != nil:
			r.logger.Warn("skipping invalid row", "path", path, "line", row.Line, "error", err)
			state.AddError(fmt.Sprintf("%s:%d: %v", path, row.Line, err))
			fs.Skipped++
			state.Skipped++
		case res.Outcome == gateway.OutcomeDuplicate:
			fs.Duplicates++
			state.Duplicates++
		default:
			fs.Inserted++
			state.Inserted++
		}
		state.Advance(path, row.Line)

		sinceSave++
		if sinceSave >= r.cfg.BatchSize {
			if err := state.Save(); err != nil {
				r.logger.Warn("failed to save import state", "error", err)
			}
			sinceSave = 0
		}
	}
}

func (s *Summary) add(fs FileSummary) {
	s.Files = append(s.Files, fs)
	s.Inserted += fs.Inserted
	s.Duplicates += fs.Duplicates
	s.Skipped += fs.Skipped
}

func (r *Runner) announce(ctx context.Context, sum Summary) {
	if len(sum.Files) == 0 {
		return
	}
	text := FormatSummary(sum)

	if r.announcer == nil {
		r.logger.Info("import summary (no Slack configured)", "summary", text)
		return
	}
	if _, err := r.announcer.PostThread(ctx, "", "", text); err != nil {
		r.logger.Warn("failed to post import summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
	}
}

// FormatSummary renders a run summary, one line per file.
func FormatSummary(sum Summary) string {
	var sb strings.Builder
	sb.WriteString("*Returns Import Summary*")
	if sum.DryRun {
		sb.WriteString(" (dry run)")
	}
	fmt.Fprintf(&sb, "\n%d inserted, %d duplicates, %d skipped\n", sum.Inserted, sum.Duplicates, sum.Skipped)

	for _, f := range sum.Files {
		fmt.Fprintf(&sb, "  - %s: %d new, %d dup, %d skipped", filepath.Base(f.Path), f.Inserted, f.Duplicates, f.Skipped)
		if f.Errors > 0 {
			fmt.Fprintf(&sb, " (%d errors)", f.Errors)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
