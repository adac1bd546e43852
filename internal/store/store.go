// Package store persists rules, configs and the rule execution log.
//
// SQLStore is the production implementation over SQLite or PostgreSQL.
// MemoryStore keeps everything in process for tests and for running the
// engine against a seed catalogue without a database. Both satisfy Store and
// share the same validation and error semantics:
//
//   - records are checked with validator struct tags before any write
//   - codes are unique; a clash is reported as types.ErrDuplicateCode
//   - lookups of missing records return the matching Err*NotFound sentinel
//   - execution counters are incremented in place, never read-modify-write
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Store is the full datastore surface: what the engine reads and writes
// during a run plus the administrative catalogue operations.
type Store interface {
	rules.RuleStore
	rules.ConfigStore
	rules.AuditLog

	ListRules(ctx context.Context, ruleType string) ([]types.Rule, error)
	GetRuleByCode(ctx context.Context, code string) (*types.Rule, error)
	CreateRule(ctx context.Context, rule *types.Rule) error
	UpdateRule(ctx context.Context, rule *types.Rule) error
	DeleteRule(ctx context.Context, id types.RuleID) error

	ListConfigs(ctx context.Context, category string) ([]types.Config, error)
	GetConfig(ctx context.Context, id types.ConfigID) (*types.Config, error)
	GetConfigByCode(ctx context.Context, code string) (*types.Config, error)
	CreateConfig(ctx context.Context, cfg *types.Config) error
	UpdateConfig(ctx context.Context, cfg *types.Config) error
	DeleteConfig(ctx context.Context, id types.ConfigID) error

	GetConfigItem(ctx context.Context, id types.ConfigItemID) (*types.ConfigItem, error)
	CreateConfigItem(ctx context.Context, item *types.ConfigItem) error
	UpdateConfigItem(ctx context.Context, item *types.ConfigItem) error
	DeleteConfigItem(ctx context.Context, id types.ConfigItemID) error

	// ListExecutionLogs returns the newest entries first. An empty ruleID
	// lists entries for all rules.
	ListExecutionLogs(ctx context.Context, ruleID types.RuleID, limit int) ([]types.RuleExecutionLogEntry, error)

	Close() error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

var validate = validator.New()

func validateRule(r *types.Rule) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: rule %q: %v", types.ErrInvalidRecord, r.Code, err)
	}
	return validateWindow(r.ValidFrom, r.ValidTo)
}

func validateConfig(c *types.Config) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: config %q: %v", types.ErrInvalidRecord, c.Code, err)
	}
	return validateWindow(c.ValidFrom, c.ValidTo)
}

func validateConfigItem(item *types.ConfigItem) error {
	if err := validate.Struct(item); err != nil {
		return fmt.Errorf("%w: config item %q: %v", types.ErrInvalidRecord, item.Code, err)
	}
	if item.ParentID != "" && item.ParentID == item.ID {
		return fmt.Errorf("%w: config item %q is its own parent", types.ErrInvalidRecord, item.Code)
	}
	return nil
}

func validateWindow(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return fmt.Errorf("%w: validFrom %s is after validTo %s",
			types.ErrInvalidRecord, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return nil
}

// utcPtr normalises an optional timestamp to UTC.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
