// Package costs accumulates token usage and prices it against the active
// provider, enforcing per-session cost limits with early-warning thresholds.
package costs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/draftsmith-ai/draftsmith/internal/provider"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// DefaultWarningThresholds are the fractions of the cost limit at which a
// warning fires. Each threshold fires at most once per session.
var DefaultWarningThresholds = []float64{0.5, 0.75, 0.9}

// CostLimitError reports a breached cost limit with the offending numbers.
type CostLimitError struct {
	Limit float64
	Total float64
}

func (e *CostLimitError) Error() string {
	return fmt.Sprintf("cost limit exceeded: $%.4f spent of $%.4f limit", e.Total, e.Limit)
}

// WarningFunc receives threshold crossings: the fraction crossed, the
// current total, and the limit.
type WarningFunc func(threshold, total, limit float64)

type modelUsage struct {
	inputTokens  int
	outputTokens int
}

// Tracker accumulates per-model token usage and child-session costs for one
// session. It is mutated only from the owning session's flow; the lock
// covers host-side reads of reports.
type Tracker struct {
	mu         sync.Mutex
	pricing    func(model string) (inputPer1K, outputPer1K float64)
	perModel   map[string]*modelUsage
	apiCalls   int
	children   []models.ChildSessionCost
	thresholds []float64
	fired      map[float64]bool
	onWarning  WarningFunc
}

// New creates a tracker priced by the given provider.
func New(p provider.LLMProvider) *Tracker {
	info := p.ModelInfo()
	return &Tracker{
		pricing: func(model string) (float64, float64) {
			// Pricing follows the active provider model; per-model rates
			// in the breakdown all come from the same provider instance.
			_ = model
			return info.InputCostPer1K, info.OutputCostPer1K
		},
		perModel:   make(map[string]*modelUsage),
		thresholds: DefaultWarningThresholds,
		fired:      make(map[float64]bool),
	}
}

// OnWarning registers the warning callback. Pass nil to disable.
func (t *Tracker) OnWarning(fn WarningFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWarning = fn
}

// RecordUsage accumulates one provider turn's tokens under modelName and
// increments the API call count.
func (t *Tracker) RecordUsage(usage models.Usage, modelName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	mu, ok := t.perModel[modelName]
	if !ok {
		mu = &modelUsage{}
		t.perModel[modelName] = mu
	}
	mu.inputTokens += usage.InputTokens
	mu.outputTokens += usage.OutputTokens
	t.apiCalls++
}

// AddChildCost credits a completed sub-agent session: its full cost joins
// the total and its tokens and API calls join the aggregates.
func (t *Tracker) AddChildCost(child models.ChildSessionCost) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.children = append(t.children, child)
}

// TotalCost is the priced sum of the breakdown plus every child's total.
func (t *Tracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalLocked()
}

func (t *Tracker) totalLocked() float64 {
	var total float64
	for model, mu := range t.perModel {
		inPer1K, outPer1K := t.pricing(model)
		total += float64(mu.inputTokens)/1000*inPer1K + float64(mu.outputTokens)/1000*outPer1K
	}
	for _, child := range t.children {
		total += child.TotalCost
	}
	return total
}

// Enforce fails with a *CostLimitError when the total reaches limit. A zero
// or negative limit disables enforcement. Warning thresholds that have been
// crossed fire exactly once each before enforcement is evaluated.
func (t *Tracker) Enforce(limit float64) error {
	if limit <= 0 {
		return nil
	}

	t.mu.Lock()
	total := t.totalLocked()
	var warnings []float64
	for _, th := range t.thresholds {
		if !t.fired[th] && total >= th*limit {
			t.fired[th] = true
			warnings = append(warnings, th)
		}
	}
	fn := t.onWarning
	t.mu.Unlock()

	if fn != nil {
		for _, th := range warnings {
			fn(th, total, limit)
		}
	}

	if total >= limit {
		return &CostLimitError{Limit: limit, Total: total}
	}
	return nil
}

// RemainingBudget returns what is left of limit, never negative. Sub-agent
// sessions are started with the parent's remaining budget as their limit.
func (t *Tracker) RemainingBudget(limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	remaining := limit - t.TotalCost()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Report snapshots the accounting as a CostReport. The breakdown is sorted
// by model name for stable output.
func (t *Tracker) Report() models.CostReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := models.CostReport{
		Currency: "USD",
		APICalls: t.apiCalls,
	}

	names := make([]string, 0, len(t.perModel))
	for model := range t.perModel {
		names = append(names, model)
	}
	sort.Strings(names)

	for _, model := range names {
		mu := t.perModel[model]
		inPer1K, outPer1K := t.pricing(model)
		report.Breakdown = append(report.Breakdown, models.ModelCost{
			Model:        model,
			InputTokens:  mu.inputTokens,
			OutputTokens: mu.outputTokens,
			InputCost:    float64(mu.inputTokens) / 1000 * inPer1K,
			OutputCost:   float64(mu.outputTokens) / 1000 * outPer1K,
		})
		report.InputTokens += mu.inputTokens
		report.OutputTokens += mu.outputTokens
	}

	for _, child := range t.children {
		report.ChildSessions = append(report.ChildSessions, child)
		report.InputTokens += child.InputTokens
		report.OutputTokens += child.OutputTokens
		report.APICalls += child.APICalls
	}

	report.TotalCost = t.totalLocked()
	return report
}

// RestoreTotals reloads the tracker from serialized session totals. The
// token arguments are the session's own usage, excluding child
// contributions; children are restored separately.
func (t *Tracker) RestoreTotals(model string, inputTokens, outputTokens, apiCalls int, children []models.ChildSessionCost) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.perModel = make(map[string]*modelUsage)
	if inputTokens > 0 || outputTokens > 0 {
		t.perModel[model] = &modelUsage{inputTokens: inputTokens, outputTokens: outputTokens}
	}
	t.apiCalls = apiCalls
	t.children = append([]models.ChildSessionCost(nil), children...)
}

// Children returns the recorded child-session costs.
func (t *Tracker) Children() []models.ChildSessionCost {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.ChildSessionCost, len(t.children))
	copy(out, t.children)
	return out
}

// Totals returns the aggregate input tokens, output tokens, and API calls,
// including child contributions.
func (t *Tracker) Totals() (inputTokens, outputTokens, apiCalls int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, mu := range t.perModel {
		inputTokens += mu.inputTokens
		outputTokens += mu.outputTokens
	}
	apiCalls = t.apiCalls
	for _, child := range t.children {
		inputTokens += child.InputTokens
		outputTokens += child.OutputTokens
		apiCalls += child.APICalls
	}
	return inputTokens, outputTokens, apiCalls
}
