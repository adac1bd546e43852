// Package seed loads the default rule and config catalogue.
//
// Seeding is idempotent by code: existing rules and configs are left as
// they are, and only config items missing from an existing config are added.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/rulekeeper/internal/types"
)

// Target is the subset of the store seeding writes through.
type Target interface {
	GetRuleByCode(ctx context.Context, code string) (*types.Rule, error)
	CreateRule(ctx context.Context, rule *types.Rule) error
	GetConfigByCode(ctx context.Context, code string) (*types.Config, error)
	CreateConfig(ctx context.Context, cfg *types.Config) error
	ListConfigItems(ctx context.Context, configID types.ConfigID) ([]types.ConfigItem, error)
	CreateConfigItem(ctx context.Context, item *types.ConfigItem) error
}

// Report counts what a Seed call created and skipped.
type Report struct {
	RulesCreated   int
	RulesSkipped   int
	ConfigsCreated int
	ConfigsSkipped int
	ItemsCreated   int
}

// Seed writes DefaultRules and DefaultConfigs into t.
func Seed(ctx context.Context, t Target, logger *slog.Logger) (Report, error) {
	return Load(ctx, t, DefaultRules(), DefaultConfigs(), logger)
}

// Load writes the given rules and configs into t, skipping codes that exist.
func Load(ctx context.Context, t Target, rules []types.Rule, configs []ConfigSeed, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var rep Report

	for i := range rules {
		rule := rules[i]
		_, err := t.GetRuleByCode(ctx, rule.Code)
		switch {
		case err == nil:
			rep.RulesSkipped++
			logger.Debug("rule exists, skipping", "code", rule.Code)
			continue
		case !errors.Is(err, types.ErrRuleNotFound):
			return rep, fmt.Errorf("look up rule %s: %w", rule.Code, err)
		}
		if err := t.CreateRule(ctx, &rule); err != nil {
			return rep, fmt.Errorf("create rule %s: %w", rule.Code, err)
		}
		rep.RulesCreated++
		logger.Info("rule created", "code", rule.Code, "rule_type", rule.RuleType)
	}

	for _, cs := range configs {
		cfg := cs.Config
		existing, err := t.GetConfigByCode(ctx, cfg.Code)
		switch {
		case err == nil:
			rep.ConfigsSkipped++
			cfg = *existing
		case errors.Is(err, types.ErrConfigNotFound):
			if err := t.CreateConfig(ctx, &cfg); err != nil {
				return rep, fmt.Errorf("create config %s: %w", cfg.Code, err)
			}
			rep.ConfigsCreated++
			logger.Info("config created", "code", cfg.Code, "category", cfg.Category)
		default:
			return rep, fmt.Errorf("look up config %s: %w", cfg.Code, err)
		}

		n, err := loadItems(ctx, t, cfg.ID, cs.Items)
		rep.ItemsCreated += n
		if err != nil {
			return rep, fmt.Errorf("seed items of %s: %w", cfg.Code, err)
		}
	}

	return rep, nil
}

func loadItems(ctx context.Context, t Target, configID types.ConfigID, items []types.ConfigItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	present, err := t.ListConfigItems(ctx, configID)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(present))
	for _, item := range present {
		have[item.Code] = true
	}

	created := 0
	for i := range items {
		item := items[i]
		if have[item.Code] {
			continue
		}
		item.ConfigID = configID
		if err := t.CreateConfigItem(ctx, &item); err != nil {
			return created, fmt.Errorf("create item %s: %w", item.Code, err)
		}
		created++
	}
	return created, nil
}
