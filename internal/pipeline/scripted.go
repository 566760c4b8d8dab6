// Package pipeline contains the in-repo pipeline implementation used for
// development mode and tests. Production deployments plug in an external
// pipeline through the core.PipelineFactory interface.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/target/analysis-api/internal/core"
	"github.com/target/analysis-api/internal/domain/model"
)

// Step is one scripted pipeline emission: either a snapshot (with the
// cumulative usage counters after it) or a terminating error.
type Step struct {
	Snapshot model.Snapshot
	Usage    model.UsageStats
	Err      error
}

// Scripted replays a fixed sequence of steps with an optional delay between
// emissions. It satisfies core.Pipeline.
type Scripted struct {
	steps []Step
	delay time.Duration

	mu    sync.Mutex
	idx   int
	usage model.UsageStats
}

// NewScripted constructs a Scripted pipeline over the given steps.
func NewScripted(steps []Step, delay time.Duration) *Scripted {
	return &Scripted{steps: steps, delay: delay}
}

// Next returns the next scripted snapshot, honoring context cancellation
// during the inter-step delay.
func (s *Scripted) Next(ctx context.Context) (model.Snapshot, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return model.Snapshot{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.steps) {
		return model.Snapshot{}, core.ErrPipelineDone
	}
	step := s.steps[s.idx]
	s.idx++
	if step.Err != nil {
		return model.Snapshot{}, step.Err
	}
	s.usage.Merge(step.Usage)
	return step.Snapshot.Clone(), nil
}

// Usage returns the cumulative counters observed so far.
func (s *Scripted) Usage() model.UsageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// DemoFactory returns a factory replaying a canned analysis for any request.
// It lets the service run end-to-end without an LLM backend.
func DemoFactory(delay time.Duration) core.PipelineFactory {
	return core.PipelineFactoryFunc(func(_ context.Context, req model.AnalysisRequest) (core.Pipeline, error) {
		return NewScripted(DemoScript(req), delay), nil
	})
}

// DemoScript builds a plausible snapshot sequence for a request: one
// snapshot per selected analyst, a research debate, a trader plan, a risk
// debate and the final decision.
func DemoScript(req model.AnalysisRequest) []Step {
	subject := fmt.Sprintf("%s (%s)", req.Ticker, req.TradeDate())
	reportFor := map[model.AnalystName]string{
		model.AnalystMarket:       model.ReportKeyMarket,
		model.AnalystSocial:       model.ReportKeySentiment,
		model.AnalystNews:         model.ReportKeyNews,
		model.AnalystFundamentals: model.ReportKeyFundamentals,
		model.AnalystQuant:        model.ReportKeyQuant,
	}

	reports := map[string]string{}
	var steps []Step
	var usage model.UsageStats

	addStep := func(agent, content string) {
		usage.LLMCalls++
		usage.TokensIn += 450
		usage.TokensOut += 180
		snap := model.Snapshot{
			Reports: cloneReports(reports),
			Message: &model.AgentMessage{Agent: agent, Content: content},
		}
		steps = append(steps, Step{Snapshot: snap, Usage: usage})
	}

	for _, analyst := range req.Analysts {
		key, ok := reportFor[analyst]
		if !ok {
			continue
		}
		reports[key] = fmt.Sprintf("## %s analysis for %s\n\nScripted %s report used in development mode.",
			analyst, subject, analyst)
		usage.ToolCalls += 2
		addStep(string(analyst)+"_analyst", fmt.Sprintf("%s analysis complete", analyst))
	}

	debate := &model.DebateState{
		BullHistory:   fmt.Sprintf("Bull case for %s: momentum supports an entry.", subject),
		BearHistory:   fmt.Sprintf("Bear case for %s: valuation is stretched.", subject),
		JudgeDecision: "Research manager sides with the bull case on balance.",
	}
	reports[model.ReportKeyInvestPlan] = fmt.Sprintf("Investment plan for %s: scale in over three sessions.", subject)
	steps = append(steps, Step{
		Snapshot: model.Snapshot{
			Reports:        cloneReports(reports),
			Message:        &model.AgentMessage{Agent: "research_manager", Content: "research debate resolved"},
			ResearchDebate: debate,
		},
		Usage: bump(&usage),
	})

	reports[model.ReportKeyTraderPlan] = fmt.Sprintf("Trader plan for %s: limit orders near support.", subject)
	steps = append(steps, Step{
		Snapshot: model.Snapshot{
			Reports:        cloneReports(reports),
			Message:        &model.AgentMessage{Agent: "trader", Content: "trading plan drafted"},
			ResearchDebate: debate,
		},
		Usage: bump(&usage),
	})

	risk := &model.RiskDebateState{
		AggressiveHistory:   "Aggressive: size up, the setup is clean.",
		ConservativeHistory: "Conservative: cap exposure at one percent.",
		NeutralHistory:      "Neutral: either works with a hard stop.",
		JudgeDecision:       fmt.Sprintf("Approve the %s trade at reduced size.", req.Ticker),
	}
	reports[model.ReportKeyDecision] = fmt.Sprintf("FINAL DECISION for %s: BUY (reduced size).", subject)
	steps = append(steps, Step{
		Snapshot: model.Snapshot{
			Reports:        cloneReports(reports),
			Message:        &model.AgentMessage{Agent: "portfolio_manager", Content: "final decision recorded"},
			ResearchDebate: debate,
			RiskDebate:     risk,
		},
		Usage: bump(&usage),
	})

	return steps
}

func bump(usage *model.UsageStats) model.UsageStats {
	usage.LLMCalls++
	usage.TokensIn += 600
	usage.TokensOut += 240
	return *usage
}

func cloneReports(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
