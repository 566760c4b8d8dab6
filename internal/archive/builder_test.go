package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/analysis-api/internal/domain/model"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 1, 14, 30, 45, 0, time.UTC)
}

func fullSnapshot() model.Snapshot {
	return model.Snapshot{
		Reports: map[string]string{
			model.ReportKeyMarket:     "Market looks constructive.",
			model.ReportKeyNews:       "Earnings beat expectations.",
			model.ReportKeyTraderPlan: "Scale in near support.",
			model.ReportKeyDecision:   "FINAL DECISION: BUY.",
		},
		ResearchDebate: &model.DebateState{
			BullHistory:   "Bull: momentum is strong.",
			BearHistory:   "Bear: multiple is rich.",
			JudgeDecision: "Side with the bull case.",
		},
		RiskDebate: &model.RiskDebateState{
			AggressiveHistory:   "Size up.",
			ConservativeHistory: "Cap exposure.",
			NeutralHistory:      "Either works with a stop.",
			JudgeDecision:       "Approve at reduced size.",
		},
	}
}

func TestBuilder_BuildFullBundle(t *testing.T) {
	root := t.TempDir()
	b := NewBuilder(Options{Root: root, Now: fixedClock})

	res, err := b.Build(Input{Ticker: "NVDA", TradeDate: "2026-08-01", Final: fullSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "reports", "NVDA_20260801_143045"), res.Dir)
	assert.Equal(t, []string{
		"1_analysts/market.md",
		"1_analysts/news.md",
		"2_research/bear.md",
		"2_research/bull.md",
		"2_research/manager.md",
		"3_trading/trader.md",
		"4_risk/aggressive.md",
		"4_risk/conservative.md",
		"4_risk/neutral.md",
		"5_portfolio/decision.md",
		"complete_report.md",
	}, res.Files)

	content, err := os.ReadFile(filepath.Join(res.Dir, "1_analysts", "market.md"))
	require.NoError(t, err)
	assert.Equal(t, "Market looks constructive.", string(content))
}

func TestBuilder_SummaryHeaderAndSections(t *testing.T) {
	root := t.TempDir()
	b := NewBuilder(Options{Root: root, Now: fixedClock})

	res, err := b.Build(Input{Ticker: "NVDA", TradeDate: "2026-08-01", Final: fullSnapshot()})
	require.NoError(t, err)

	summary, err := os.ReadFile(filepath.Join(res.Dir, SummaryFileName))
	require.NoError(t, err)
	text := string(summary)

	assert.Contains(t, text, "# Trading Analysis Report: NVDA\n\nTrade Date: 2026-08-01\n\nGenerated: 2026-08-01 14:30:45\n\n")
	assert.Contains(t, text, "## I. Analyst Team Reports")
	assert.Contains(t, text, "### Market Analyst\nMarket looks constructive.")
	assert.Contains(t, text, "## V. Portfolio Manager Decision")
	assert.NotContains(t, text, "## VI. Artifacts")
}

func TestBuilder_EmptySectionsAreOmitted(t *testing.T) {
	root := t.TempDir()
	b := NewBuilder(Options{Root: root, Now: fixedClock})

	snap := model.Snapshot{Reports: map[string]string{
		model.ReportKeyMarket:    "Only the market report exists.",
		model.ReportKeySentiment: "   ",
	}}
	res, err := b.Build(Input{Ticker: "AAPL", TradeDate: "2026-08-01", Final: snap})
	require.NoError(t, err)

	// Blank entries produce no files; sections with no entries produce no
	// directories.
	assert.Equal(t, []string{"1_analysts/market.md", "complete_report.md"}, res.Files)
	_, err = os.Stat(filepath.Join(res.Dir, "2_research"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(res.Dir, "1_analysts", "sentiment.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuilder_CopiesArtifactsFromLiveDir(t *testing.T) {
	root := t.TempDir()
	liveDir := filepath.Join(root, "results", "NVDA", "2026-08-01", "reports")
	require.NoError(t, os.MkdirAll(liveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "chart.png"), []byte("png-bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "prices.csv"), []byte("date,close\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "market_report.md"), []byte("not an artifact"), 0o644))

	b := NewBuilder(Options{Root: root, Now: fixedClock})
	res, err := b.Build(Input{
		Ticker:    "NVDA",
		TradeDate: "2026-08-01",
		Final:     model.Snapshot{Reports: map[string]string{model.ReportKeyMarket: "report"}},
		LiveDir:   liveDir,
	})
	require.NoError(t, err)

	assert.Contains(t, res.Files, "6_artifacts/chart.png")
	assert.Contains(t, res.Files, "6_artifacts/prices.csv")
	assert.NotContains(t, res.Files, "6_artifacts/market_report.md")

	summary, err := os.ReadFile(filepath.Join(res.Dir, SummaryFileName))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "## VI. Artifacts")
}

func TestBuilder_MissingLiveDirIsFine(t *testing.T) {
	root := t.TempDir()
	b := NewBuilder(Options{Root: root, Now: fixedClock})

	_, err := b.Build(Input{
		Ticker:    "NVDA",
		TradeDate: "2026-08-01",
		Final:     model.Snapshot{Reports: map[string]string{model.ReportKeyMarket: "report"}},
		LiveDir:   filepath.Join(root, "does", "not", "exist"),
	})
	assert.NoError(t, err)
}

func TestIsArtifactName(t *testing.T) {
	assert.True(t, IsArtifactName("chart.png"))
	assert.True(t, IsArtifactName("PRICES.CSV"))
	assert.False(t, IsArtifactName("market_report.md"))
	assert.False(t, IsArtifactName("notes.txt"))
	assert.False(t, IsArtifactName("chart"))
}
