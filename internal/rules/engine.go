// internal/rules/engine.go
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Rule selection and execution.
 *
 * FindAndExecuteRules runs one business event through every active rule of a
 * type:
 *   1. Load enabled rules of the type valid now; re-check the window and sort
 *      by priority descending (stable, so ties keep store order)
 *   2. Skip rules whose mutex group an earlier rule already satisfied,
 *      without evaluating them
 *   3. Evaluate conditions; on match dispatch actions
 *   4. A fully successful action pass marks the rule's mutex group
 *   5. Append one audit entry per considered rule, bump execution counters
 *
 * Only matched rules (and faulted ones) appear in the returned results.
 *
 * Failure policy: a failure to load the rule set is returned. Everything
 * after that is per rule: a panic while processing a rule becomes a failed
 * result plus an audit entry, audit and counter writes are best effort and
 * only logged.
 *
 * Counters: under CountConsidered every rule that was evaluated without a
 * fault is counted, matched or not. CountMatched counts matched rules only.
 * Increments go through RuleStore.RecordExecution; atomicity is the store's
 * concern.
 *
 * No state survives a call. Engine is safe for concurrent use.
 */

// RuleStore reads rule definitions and records execution counters.
type RuleStore interface {
	ListActiveRules(ctx context.Context, ruleType string, now time.Time) ([]types.Rule, error)
	GetRule(ctx context.Context, id types.RuleID) (*types.Rule, error)
	RecordExecution(ctx context.Context, id types.RuleID, at time.Time) error
}

// ConfigStore reads config records and their items.
type ConfigStore interface {
	ListActiveConfigs(ctx context.Context, category, code string, now time.Time) ([]types.Config, error)
	ListConfigItems(ctx context.Context, configID types.ConfigID) ([]types.ConfigItem, error)
}

// AuditLog appends execution log entries.
type AuditLog interface {
	AppendExecutionLog(ctx context.Context, entry *types.RuleExecutionLogEntry) error
}

// Recorder receives engine measurements. internal/metrics implements it.
type Recorder interface {
	RuleConsidered(ruleType, outcome string)
	ActionExecuted(kind string, success bool)
	RunCompleted(ruleType string, d time.Duration, results int)
	StoreWriteFailed(op string)
}

// Rule outcomes reported to the Recorder.
const (
	OutcomeSkipped   = "skipped"
	OutcomeUnmatched = "unmatched"
	OutcomeExecuted  = "executed"
	OutcomeFailed    = "failed"
	OutcomeFault     = "fault"
)

// CountPolicy selects which considered rules get their counters bumped.
type CountPolicy int

const (
	// CountConsidered counts every rule evaluated without a fault.
	CountConsidered CountPolicy = iota
	// CountMatched counts rules whose conditions matched.
	CountMatched
)

// ParseCountPolicy maps "considered" or "matched" to a CountPolicy.
func ParseCountPolicy(s string) (CountPolicy, error) {
	switch s {
	case "", "considered":
		return CountConsidered, nil
	case "matched":
		return CountMatched, nil
	default:
		return 0, fmt.Errorf("unknown count policy %q (expected considered or matched)", s)
	}
}

// RuleExecutionResult is the outcome of one matched or faulted rule.
type RuleExecutionResult struct {
	Success  bool           `json:"success"`
	RuleID   types.RuleID   `json:"ruleId"`
	RuleCode string         `json:"ruleCode"`
	Actions  []ActionResult `json:"actions"`
	Error    string         `json:"error,omitempty"`
}

// TestResult is the outcome of evaluating one rule outside the run loop.
type TestResult struct {
	Matched  bool              `json:"matched"`
	Executed bool              `json:"executed"`
	Result   *ExecutionOutcome `json:"result"`
}

// Engine runs rules and resolves configs against a datastore.
type Engine struct {
	rules    RuleStore
	configs  ConfigStore
	audit    AuditLog
	eval     *Evaluator
	logger   *slog.Logger
	metrics  Recorder
	tracer   trace.Tracer
	now      func() time.Time
	counting CountPolicy
	facts    func(types.Context) Facts
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithClock overrides time.Now, for validity windows and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCountPolicy selects the execution counter semantics.
func WithCountPolicy(p CountPolicy) Option {
	return func(e *Engine) { e.counting = p }
}

// NewEngine creates an engine. audit may be nil to disable audit logging;
// configs may be nil when config resolution is not used.
func NewEngine(rules RuleStore, configs ConfigStore, audit AuditLog, opts ...Option) *Engine {
	e := &Engine{
		rules:   rules,
		configs: configs,
		audit:   audit,
		logger:  slog.Default(),
		metrics: noopRecorder{},
		tracer:  otel.Tracer("github.com/solatis/rulekeeper/internal/rules"),
		now:     time.Now,
		facts:   func(rc types.Context) Facts { return ContextFacts(rc) },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.eval = NewEvaluator(e.logger)
	if audit == nil {
		e.logger.Warn("rule execution audit log disabled")
	}
	return e
}

// Evaluator returns the evaluator the engine uses.
func (e *Engine) Evaluator() *Evaluator {
	return e.eval
}

// FindAndExecuteRules runs every active rule of ruleType against rc.
func (e *Engine) FindAndExecuteRules(ctx context.Context, ruleType string, rc types.Context) ([]RuleExecutionResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "rules.FindAndExecuteRules",
		trace.WithAttributes(attribute.String("rule.type", ruleType)))
	defer span.End()

	now := e.now()
	loaded, err := e.rules.ListActiveRules(ctx, ruleType, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load rules")
		return nil, fmt.Errorf("load %s rules: %w", ruleType, err)
	}
	candidates := selectCandidates(loaded, ruleType, now)

	facts := e.facts(rc)
	satisfied := make(map[string]struct{})
	results := make([]RuleExecutionResult, 0)

	for i := range candidates {
		rule := &candidates[i]

		if rule.MutexGroup != "" {
			if _, done := satisfied[rule.MutexGroup]; done {
				e.metrics.RuleConsidered(ruleType, OutcomeSkipped)
				continue
			}
		}

		out := e.processRule(rule, facts)
		at := e.now()

		switch {
		case out.fault != nil:
			e.logger.Error("rule processing failed", "rule", rule.Code, "error", out.fault)
			e.metrics.RuleConsidered(ruleType, OutcomeFault)
			results = append(results, RuleExecutionResult{
				Success:  false,
				RuleID:   rule.ID,
				RuleCode: rule.Code,
				Actions:  []ActionResult{},
				Error:    out.fault.Error(),
			})
			e.appendAudit(ctx, newLogEntry(rule, rc, true, false, nil, out.fault.Error(), out.elapsed, at))
			continue

		case !out.matched:
			e.metrics.RuleConsidered(ruleType, OutcomeUnmatched)
			e.appendAudit(ctx, newLogEntry(rule, rc, false, false, nil, "", out.elapsed, at))

		default:
			e.recordActions(out.actions)
			if out.actions.Success {
				e.metrics.RuleConsidered(ruleType, OutcomeExecuted)
				if rule.MutexGroup != "" {
					satisfied[rule.MutexGroup] = struct{}{}
				}
			} else {
				e.metrics.RuleConsidered(ruleType, OutcomeFailed)
			}
			results = append(results, RuleExecutionResult{
				Success:  out.actions.Success,
				RuleID:   rule.ID,
				RuleCode: rule.Code,
				Actions:  out.actions.Actions,
			})
			e.appendAudit(ctx, newLogEntry(rule, rc, true, out.actions.Success, out.actions, "", out.elapsed, at))
		}

		if out.matched || e.counting == CountConsidered {
			e.recordExecution(ctx, rule, at)
		}
	}

	elapsed := time.Since(start)
	e.metrics.RunCompleted(ruleType, elapsed, len(results))
	span.SetAttributes(
		attribute.Int("rule.candidates", len(candidates)),
		attribute.Int("rule.results", len(results)),
	)
	e.logger.Debug("rule run completed",
		"rule_type", ruleType, "candidates", len(candidates), "results", len(results), "duration", elapsed)

	return results, nil
}

// TestRule evaluates one stored rule against rc, bypassing priority, mutex
// groups, counters and audit logging.
func (e *Engine) TestRule(ctx context.Context, id types.RuleID, rc types.Context) (TestResult, error) {
	rule, err := e.rules.GetRule(ctx, id)
	if err != nil {
		return TestResult{}, fmt.Errorf("load rule %s: %w", id, err)
	}
	return e.EvaluateRule(rule, rc)
}

// EvaluateRule matches and executes a single rule without side effects.
// Disabled rules and rules outside their window are still evaluated.
func (e *Engine) EvaluateRule(rule *types.Rule, rc types.Context) (TestResult, error) {
	out := e.processRule(rule, e.facts(rc))
	if out.fault != nil {
		return TestResult{}, out.fault
	}
	if !out.matched {
		return TestResult{}, nil
	}
	actions := out.actions
	return TestResult{Matched: true, Executed: actions.Success, Result: &actions}, nil
}

// GetActiveConfig returns enabled configs of category valid now, optionally
// narrowed to one code, ascending by sort order.
func (e *Engine) GetActiveConfig(ctx context.Context, category, code string) ([]types.Config, error) {
	now := e.now()
	loaded, err := e.configs.ListActiveConfigs(ctx, category, code, now)
	if err != nil {
		return nil, fmt.Errorf("load %s configs: %w", category, err)
	}

	out := make([]types.Config, 0, len(loaded))
	for i := range loaded {
		c := &loaded[i]
		if c.Category != category || !c.ActiveAt(now) {
			continue
		}
		if code != "" && c.Code != code {
			continue
		}
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

// GetConfigItems returns the enabled items of a config ascending by sort order.
func (e *Engine) GetConfigItems(ctx context.Context, configID types.ConfigID) ([]types.ConfigItem, error) {
	loaded, err := e.configs.ListConfigItems(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("load items of config %s: %w", configID, err)
	}

	out := make([]types.ConfigItem, 0, len(loaded))
	for _, item := range loaded {
		if item.IsEnabled && item.ConfigID == configID {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

type ruleOutcome struct {
	matched bool
	actions ExecutionOutcome
	fault   error
	elapsed time.Duration
}

// processRule evaluates and executes one rule. A panic anywhere inside is
// converted into a fault on the matched path.
func (e *Engine) processRule(rule *types.Rule, facts Facts) (out ruleOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = ruleOutcome{matched: true, fault: fmt.Errorf("%w: rule %s: %s", types.ErrRuleFault, rule.Code, describePanic(r))}
		}
		out.elapsed = time.Since(start)
	}()

	compiled := Compile(rule)
	if !e.eval.evaluateCompiled(compiled.Conditions, facts) {
		return ruleOutcome{}
	}
	return ruleOutcome{matched: true, actions: e.eval.executeCompiled(compiled.Actions, facts)}
}

func (e *Engine) recordActions(outcome ExecutionOutcome) {
	for _, a := range outcome.Actions {
		e.metrics.ActionExecuted(a.Type, a.Success)
	}
}

func (e *Engine) appendAudit(ctx context.Context, entry *types.RuleExecutionLogEntry) {
	if e.audit == nil {
		return
	}
	if err := e.audit.AppendExecutionLog(ctx, entry); err != nil {
		e.metrics.StoreWriteFailed("audit")
		e.logger.Warn("failed to write rule execution log", "rule", entry.RuleCode, "error", err)
	}
}

func (e *Engine) recordExecution(ctx context.Context, rule *types.Rule, at time.Time) {
	if err := e.rules.RecordExecution(ctx, rule.ID, at); err != nil {
		e.metrics.StoreWriteFailed("counter")
		e.logger.Warn("failed to update rule execution counter", "rule", rule.Code, "error", err)
	}
}

// selectCandidates keeps rules of ruleType active at now, highest priority
// first. Stores already filter; this guards against stores that do not.
func selectCandidates(rules []types.Rule, ruleType string, now time.Time) []types.Rule {
	out := make([]types.Rule, 0, len(rules))
	for i := range rules {
		if rules[i].RuleType == ruleType && rules[i].ActiveAt(now) {
			out = append(out, rules[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

type noopRecorder struct{}

func (noopRecorder) RuleConsidered(string, string) {}
func (noopRecorder) ActionExecuted(string, bool) {}
func (noopRecorder) RunCompleted(string, time.Duration, int) {}
func (noopRecorder) StoreWriteFailed(string) {}
