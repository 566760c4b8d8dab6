package model

// Report keys produced by the pipeline, in emission order.
const (
	ReportKeyMarket       = "market_report"
	ReportKeySentiment    = "sentiment_report"
	ReportKeyNews         = "news_report"
	ReportKeyFundamentals = "fundamentals_report"
	ReportKeyQuant        = "quant_report"
	ReportKeyInvestPlan   = "investment_plan"
	ReportKeyTraderPlan   = "trader_investment_plan"
	ReportKeyDecision     = "final_trade_decision"
)

// ReportKeys is the fixed, ordered set of known report output keys.
var ReportKeys = []string{
	ReportKeyMarket,
	ReportKeySentiment,
	ReportKeyNews,
	ReportKeyFundamentals,
	ReportKeyQuant,
	ReportKeyInvestPlan,
	ReportKeyTraderPlan,
	ReportKeyDecision,
}

// ReportFiles maps each report key to its live output file name.
var ReportFiles = map[string]string{
	ReportKeyMarket:       "market_report.md",
	ReportKeySentiment:    "sentiment_report.md",
	ReportKeyNews:         "news_report.md",
	ReportKeyFundamentals: "fundamentals_report.md",
	ReportKeyQuant:        "quant_report.md",
	ReportKeyInvestPlan:   "investment_plan.md",
	ReportKeyTraderPlan:   "trader_investment_plan.md",
	ReportKeyDecision:     "final_trade_decision.md",
}

// AgentMessage is a trailing progress message carried by a snapshot.
type AgentMessage struct {
	Agent   string
	Content string
}

// DebateState holds the research team's partial transcripts.
type DebateState struct {
	BullHistory   string
	BearHistory   string
	JudgeDecision string
}

// RiskDebateState holds the risk team's partial transcripts.
type RiskDebateState struct {
	AggressiveHistory   string
	ConservativeHistory string
	NeutralHistory      string
	JudgeDecision       string
}

// Snapshot is one partial-result mapping yielded by the pipeline during
// execution. Absent or empty values mean "not yet produced".
type Snapshot struct {
	// Reports maps known report keys to their current text. Keys outside
	// ReportKeys are ignored by the runner.
	Reports map[string]string

	// Message is the trailing progress message of this snapshot, if any.
	Message *AgentMessage

	// ResearchDebate and RiskDebate carry the debate transcripts used by the
	// archive builder; they are not diffed or persisted incrementally.
	ResearchDebate *DebateState
	RiskDebate     *RiskDebateState
}

// Report returns the text for a report key, or "" when absent.
func (s Snapshot) Report(key string) string {
	if s.Reports == nil {
		return ""
	}
	return s.Reports[key]
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Reports != nil {
		out.Reports = make(map[string]string, len(s.Reports))
		for k, v := range s.Reports {
			out.Reports[k] = v
		}
	}
	if s.Message != nil {
		m := *s.Message
		out.Message = &m
	}
	if s.ResearchDebate != nil {
		d := *s.ResearchDebate
		out.ResearchDebate = &d
	}
	if s.RiskDebate != nil {
		d := *s.RiskDebate
		out.RiskDebate = &d
	}
	return out
}
