// Package archive assembles the durable result bundle for a completed job.
package archive

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/target/analysis-api/internal/domain/model"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	// SummaryFileName is the top-level document concatenating all sections.
	SummaryFileName = "complete_report.md"
)

// Builder writes archive bundles under <Root>/reports/<TICKER>_<timestamp>/.
type Builder struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// Options groups dependencies for the Builder.
type Options struct {
	Root   string           // Required: data root directory
	Logger *slog.Logger     // Optional
	Now    func() time.Time // Optional: clock override for tests
}

// NewBuilder constructs a Builder rooted at opts.Root.
func NewBuilder(opts Options) *Builder {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "archive_builder")
	}
	return &Builder{root: opts.Root, logger: logger, now: now}
}

// Input carries everything the builder needs for one bundle.
type Input struct {
	Ticker    string
	TradeDate string
	Final     model.Snapshot
	// LiveDir is the job's live report directory; its .png/.csv artifacts
	// are copied into the bundle.
	LiveDir string
}

// Result describes a finished bundle.
type Result struct {
	Dir string
	// Files is the flattened, sorted list of all bundle files as
	// forward-slash relative paths.
	Files []string
}

type sectionEntry struct {
	title    string
	content  string
	fileName string
}

// Build assembles the bundle from the final snapshot. Missing or empty
// inputs shrink the bundle but never abort; only filesystem write failures
// return an error.
func (b *Builder) Build(in Input) (Result, error) {
	timestamp := b.now().Format("20060102_150405")
	dir := filepath.Join(b.root, "reports", fmt.Sprintf("%s_%s", in.Ticker, timestamp))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return Result{}, fmt.Errorf("create archive dir: %w", err)
	}

	var sections []string

	analysts := []sectionEntry{
		{"Market Analyst", in.Final.Report(model.ReportKeyMarket), "market.md"},
		{"Social Analyst", in.Final.Report(model.ReportKeySentiment), "sentiment.md"},
		{"News Analyst", in.Final.Report(model.ReportKeyNews), "news.md"},
		{"Fundamentals Analyst", in.Final.Report(model.ReportKeyFundamentals), "fundamentals.md"},
		{"Quant Analyst", in.Final.Report(model.ReportKeyQuant), "quant.md"},
	}
	if err := b.writeSection(dir, "1_analysts", "## I. Analyst Team Reports", analysts, &sections); err != nil {
		return Result{}, err
	}

	var research []sectionEntry
	if d := in.Final.ResearchDebate; d != nil {
		research = []sectionEntry{
			{"Bull Researcher", d.BullHistory, "bull.md"},
			{"Bear Researcher", d.BearHistory, "bear.md"},
			{"Research Manager", d.JudgeDecision, "manager.md"},
		}
	}
	if err := b.writeSection(dir, "2_research", "## II. Research Team Decision", research, &sections); err != nil {
		return Result{}, err
	}

	trading := []sectionEntry{
		{"Trader", in.Final.Report(model.ReportKeyTraderPlan), "trader.md"},
	}
	if err := b.writeSection(dir, "3_trading", "## III. Trading Team Plan", trading, &sections); err != nil {
		return Result{}, err
	}

	var risk []sectionEntry
	var portfolio []sectionEntry
	if d := in.Final.RiskDebate; d != nil {
		risk = []sectionEntry{
			{"Aggressive Analyst", d.AggressiveHistory, "aggressive.md"},
			{"Conservative Analyst", d.ConservativeHistory, "conservative.md"},
			{"Neutral Analyst", d.NeutralHistory, "neutral.md"},
		}
		portfolio = []sectionEntry{
			{"Portfolio Manager", d.JudgeDecision, "decision.md"},
		}
	}
	if err := b.writeSection(dir, "4_risk", "## IV. Risk Management Team Decision", risk, &sections); err != nil {
		return Result{}, err
	}
	if err := b.writeSection(dir, "5_portfolio", "## V. Portfolio Manager Decision", portfolio, &sections); err != nil {
		return Result{}, err
	}

	copied, err := b.copyArtifacts(in.LiveDir, dir)
	if err != nil {
		return Result{}, err
	}
	if copied > 0 {
		sections = append(sections, "## VI. Artifacts\n\nSaved under `6_artifacts/`.")
	}

	header := fmt.Sprintf("# Trading Analysis Report: %s\n\nTrade Date: %s\n\nGenerated: %s\n\n",
		in.Ticker, in.TradeDate, b.now().Format("2006-01-02 15:04:05"))
	summary := header + strings.Join(sections, "\n\n")
	if err := os.WriteFile(filepath.Join(dir, SummaryFileName), []byte(summary), filePerm); err != nil {
		return Result{}, fmt.Errorf("write summary: %w", err)
	}

	files, err := ListFiles(dir)
	if err != nil {
		return Result{}, err
	}
	if b.logger != nil {
		b.logger.Debug("archive built", "dir", dir, "files", len(files))
	}
	return Result{Dir: dir, Files: files}, nil
}

// writeSection writes one file per populated entry under a section
// subdirectory and appends the composed section to the table of contents.
// Sections with no populated entries are omitted entirely.
func (b *Builder) writeSection(
	archiveDir, subDir, heading string,
	entries []sectionEntry,
	sections *[]string,
) error {
	var parts []string
	dir := filepath.Join(archiveDir, subDir)
	created := false
	for _, e := range entries {
		if strings.TrimSpace(e.content) == "" {
			continue
		}
		if !created {
			if err := os.MkdirAll(dir, dirPerm); err != nil {
				return fmt.Errorf("create section dir %s: %w", subDir, err)
			}
			created = true
		}
		if err := os.WriteFile(filepath.Join(dir, e.fileName), []byte(e.content), filePerm); err != nil {
			return fmt.Errorf("write %s/%s: %w", subDir, e.fileName, err)
		}
		parts = append(parts, fmt.Sprintf("### %s\n%s", e.title, e.content))
	}
	if len(parts) > 0 {
		*sections = append(*sections, heading+"\n\n"+strings.Join(parts, "\n\n"))
	}
	return nil
}

// copyArtifacts copies .png/.csv files from the live report directory into
// the bundle's 6_artifacts subdirectory. A missing live directory is fine.
func (b *Builder) copyArtifacts(liveDir, archiveDir string) (int, error) {
	if liveDir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(liveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read live dir: %w", err)
	}

	dst := filepath.Join(archiveDir, "6_artifacts")
	copied := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsArtifactName(entry.Name()) {
			continue
		}
		if copied == 0 {
			if err := os.MkdirAll(dst, dirPerm); err != nil {
				return 0, fmt.Errorf("create artifacts dir: %w", err)
			}
		}
		data, err := os.ReadFile(filepath.Join(liveDir, entry.Name()))
		if err != nil {
			return copied, fmt.Errorf("read artifact %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(dst, entry.Name()), data, filePerm); err != nil {
			return copied, fmt.Errorf("copy artifact %s: %w", entry.Name(), err)
		}
		copied++
	}
	return copied, nil
}

// IsArtifactName reports whether a file name is a binary/tabular artifact.
func IsArtifactName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".csv":
		return true
	}
	return false
}

// ListFiles returns every file under dir as sorted, forward-slash relative
// paths.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archive files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
