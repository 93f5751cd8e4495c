package costs

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/draftsmith-ai/draftsmith/internal/provider"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

type stubProvider struct {
	info provider.ModelInfo
}

func (s *stubProvider) SendMessage(context.Context, []models.Message, []models.Tool, *provider.SendOptions) (*models.ProviderResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) CalculateCost(usage models.Usage) float64 {
	return float64(usage.InputTokens)/1000*s.info.InputCostPer1K +
		float64(usage.OutputTokens)/1000*s.info.OutputCostPer1K
}

func (s *stubProvider) ModelInfo() provider.ModelInfo { return s.info }
func (s *stubProvider) Name() string                  { return "stub" }

func sonnetTracker() *Tracker {
	return New(&stubProvider{info: provider.ModelInfo{
		Name:            "claude-sonnet-4-20250514",
		InputCostPer1K:  0.003,
		OutputCostPer1K: 0.015,
	}})
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	return diff <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

func TestTotalCostSumsBreakdownAndChildren(t *testing.T) {
	tr := sonnetTracker()
	tr.RecordUsage(models.Usage{InputTokens: 10000, OutputTokens: 5000}, "claude-sonnet-4-20250514")

	// 10k in * 0.003 + 5k out * 0.015 = 0.030 + 0.075 = 0.105
	if got := tr.TotalCost(); !approxEqual(got, 0.105) {
		t.Fatalf("TotalCost() = %v, want 0.105", got)
	}

	tr.AddChildCost(models.ChildSessionCost{
		SessionID:   "sess_child",
		Agent:       "pm",
		Command:     "create-prd",
		TotalCost:   2.1,
		InputTokens: 200000, OutputTokens: 100000,
		APICalls: 1,
	})

	if got := tr.TotalCost(); !approxEqual(got, 2.205) {
		t.Fatalf("TotalCost() with child = %v, want 2.205", got)
	}

	report := tr.Report()
	var sum float64
	for _, mc := range report.Breakdown {
		sum += mc.InputCost + mc.OutputCost
	}
	for _, cs := range report.ChildSessions {
		sum += cs.TotalCost
	}
	if !approxEqual(report.TotalCost, sum) {
		t.Errorf("report total %v != breakdown+children sum %v", report.TotalCost, sum)
	}
	if report.APICalls != 2 {
		t.Errorf("APICalls = %d, want 2 (one local, one child)", report.APICalls)
	}
	if report.InputTokens != 210000 || report.OutputTokens != 105000 {
		t.Errorf("token totals = (%d, %d), want (210000, 105000)", report.InputTokens, report.OutputTokens)
	}
}

func TestEnforceCostLimit(t *testing.T) {
	tr := sonnetTracker()
	tr.RecordUsage(models.Usage{InputTokens: 10000, OutputTokens: 5000}, "claude-sonnet-4-20250514")

	if err := tr.Enforce(1.0); err != nil {
		t.Fatalf("Enforce(1.0) under limit: %v", err)
	}

	tr.AddChildCost(models.ChildSessionCost{SessionID: "sess_x", TotalCost: 2.1})

	err := tr.Enforce(1.0)
	var limitErr *CostLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Enforce(1.0) over limit: got %v, want *CostLimitError", err)
	}
	if limitErr.Limit != 1.0 || !approxEqual(limitErr.Total, 2.205) {
		t.Errorf("CostLimitError = {%v, %v}, want {1.0, 2.205}", limitErr.Limit, limitErr.Total)
	}
}

func TestEnforceZeroLimitDisabled(t *testing.T) {
	tr := sonnetTracker()
	tr.RecordUsage(models.Usage{InputTokens: 1000000, OutputTokens: 1000000}, "claude-sonnet-4-20250514")
	if err := tr.Enforce(0); err != nil {
		t.Fatalf("Enforce(0) should disable enforcement, got %v", err)
	}
}

func TestWarningThresholdsFireOnce(t *testing.T) {
	tr := sonnetTracker()
	var fired []float64
	tr.OnWarning(func(threshold, total, limit float64) {
		fired = append(fired, threshold)
	})

	// $0.105 of a $0.20 limit crosses 0.5 only.
	tr.RecordUsage(models.Usage{InputTokens: 10000, OutputTokens: 5000}, "claude-sonnet-4-20250514")
	if err := tr.Enforce(0.20); err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if len(fired) != 1 || fired[0] != 0.5 {
		t.Fatalf("fired = %v, want [0.5]", fired)
	}

	// Re-enforcing at the same spend fires nothing new.
	if err := tr.Enforce(0.20); err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("threshold fired twice: %v", fired)
	}

	// $0.105 more crosses 0.75 and 0.9 in one step; limit breached too.
	tr.RecordUsage(models.Usage{InputTokens: 10000, OutputTokens: 5000}, "claude-sonnet-4-20250514")
	err := tr.Enforce(0.20)
	var limitErr *CostLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("Enforce over limit: got %v", err)
	}
	if len(fired) != 3 || fired[1] != 0.75 || fired[2] != 0.9 {
		t.Fatalf("fired = %v, want [0.5 0.75 0.9]", fired)
	}
}

func TestRemainingBudget(t *testing.T) {
	tr := sonnetTracker()
	tr.RecordUsage(models.Usage{InputTokens: 10000, OutputTokens: 5000}, "claude-sonnet-4-20250514")

	if got := tr.RemainingBudget(1.0); !approxEqual(got, 0.895) {
		t.Errorf("RemainingBudget(1.0) = %v, want 0.895", got)
	}
	if got := tr.RemainingBudget(0.05); got != 0 {
		t.Errorf("RemainingBudget(0.05) = %v, want 0 (never negative)", got)
	}
	if got := tr.RemainingBudget(0); got != 0 {
		t.Errorf("RemainingBudget(0) = %v, want 0 (no limit)", got)
	}
}

func TestReportBreakdownSorted(t *testing.T) {
	tr := sonnetTracker()
	tr.RecordUsage(models.Usage{InputTokens: 100, OutputTokens: 10}, "model-b")
	tr.RecordUsage(models.Usage{InputTokens: 100, OutputTokens: 10}, "model-a")

	report := tr.Report()
	if len(report.Breakdown) != 2 {
		t.Fatalf("breakdown length = %d, want 2", len(report.Breakdown))
	}
	if report.Breakdown[0].Model != "model-a" || report.Breakdown[1].Model != "model-b" {
		t.Errorf("breakdown order = [%s %s], want [model-a model-b]",
			report.Breakdown[0].Model, report.Breakdown[1].Model)
	}
}
