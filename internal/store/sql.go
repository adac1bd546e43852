package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/types"
)

// SQLStore implements Store over the named queries in internal/core/db.
// Safe for concurrent use; connection pooling is sqlx's.
type SQLStore struct {
	q   *db.Queries
	now func() time.Time
}

// NewSQLStore wraps an open, migrated connection.
func NewSQLStore(conn *sqlx.DB) (*SQLStore, error) {
	q, err := db.LoadQueries(conn)
	if err != nil {
		return nil, err
	}
	return &SQLStore{q: q, now: time.Now}, nil
}

// DB returns the underlying connection.
func (s *SQLStore) DB() *sqlx.DB {
	return s.q.DB()
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	return s.q.DB().Close()
}

func (s *SQLStore) timestamp() time.Time {
	return s.now().UTC()
}

// Rules

func (s *SQLStore) ListActiveRules(ctx context.Context, ruleType string, now time.Time) ([]types.Rule, error) {
	now = now.UTC()
	var rows []ruleRow
	if err := s.q.SelectContext(ctx, "list-active-rules", &rows, ruleType, true, now, now); err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return toRules(rows)
}

func (s *SQLStore) ListRules(ctx context.Context, ruleType string) ([]types.Rule, error) {
	var rows []ruleRow
	var err error
	if ruleType == "" {
		err = s.q.SelectContext(ctx, "list-rules", &rows)
	} else {
		err = s.q.SelectContext(ctx, "list-rules-by-type", &rows, ruleType)
	}
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return toRules(rows)
}

func (s *SQLStore) GetRule(ctx context.Context, id types.RuleID) (*types.Rule, error) {
	return s.getRule(ctx, "get-rule", string(id))
}

func (s *SQLStore) GetRuleByCode(ctx context.Context, code string) (*types.Rule, error) {
	return s.getRule(ctx, "get-rule-by-code", code)
}

func (s *SQLStore) getRule(ctx context.Context, query, key string) (*types.Rule, error) {
	var row ruleRow
	if err := s.q.GetContext(ctx, query, &row, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrRuleNotFound
		}
		return nil, fmt.Errorf("get rule %s: %w", key, err)
	}
	rule, err := row.toRule()
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *SQLStore) CreateRule(ctx context.Context, rule *types.Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	}
	now := s.timestamp()
	rule.CreatedAt, rule.UpdatedAt = now, now
	rule.ExecutionCount, rule.LastExecutedAt = 0, nil

	doc, err := encodeRule(rule)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, "insert-rule",
		rule.ID, rule.Code, doc.name, doc.description, rule.RuleType, doc.conditions, doc.actions,
		rule.Priority, nullString(rule.MutexGroup), rule.IsEnabled, utcPtr(rule.ValidFrom), utcPtr(rule.ValidTo),
		now, now)
	return writeErr("create rule", rule.Code, err)
}

func (s *SQLStore) UpdateRule(ctx context.Context, rule *types.Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	existing, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		return err
	}
	doc, err := encodeRule(rule)
	if err != nil {
		return err
	}

	now := s.timestamp()
	_, err = s.q.ExecContext(ctx, "update-rule",
		rule.Code, doc.name, doc.description, rule.RuleType, doc.conditions, doc.actions,
		rule.Priority, nullString(rule.MutexGroup), rule.IsEnabled, utcPtr(rule.ValidFrom), utcPtr(rule.ValidTo),
		now, rule.ID)
	if err := writeErr("update rule", rule.Code, err); err != nil {
		return err
	}

	rule.CreatedAt = existing.CreatedAt
	rule.ExecutionCount = existing.ExecutionCount
	rule.LastExecutedAt = existing.LastExecutedAt
	rule.UpdatedAt = now
	return nil
}

func (s *SQLStore) DeleteRule(ctx context.Context, id types.RuleID) error {
	res, err := s.q.ExecContext(ctx, "delete-rule", id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return expectRow(res, types.ErrRuleNotFound)
}

// RecordExecution increments the counter with a single UPDATE so concurrent
// runs never lose increments.
func (s *SQLStore) RecordExecution(ctx context.Context, id types.RuleID, at time.Time) error {
	res, err := s.q.ExecContext(ctx, "increment-rule-execution", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("record execution of rule %s: %w", id, err)
	}
	return expectRow(res, types.ErrRuleNotFound)
}

// Configs

func (s *SQLStore) ListActiveConfigs(ctx context.Context, category, code string, now time.Time) ([]types.Config, error) {
	now = now.UTC()
	var rows []configRow
	var err error
	if code == "" {
		err = s.q.SelectContext(ctx, "list-active-configs", &rows, category, true, now, now)
	} else {
		err = s.q.SelectContext(ctx, "list-active-configs-by-code", &rows, category, code, true, now, now)
	}
	if err != nil {
		return nil, fmt.Errorf("list active configs: %w", err)
	}
	return toConfigs(rows)
}

func (s *SQLStore) ListConfigs(ctx context.Context, category string) ([]types.Config, error) {
	var rows []configRow
	var err error
	if category == "" {
		err = s.q.SelectContext(ctx, "list-configs", &rows)
	} else {
		err = s.q.SelectContext(ctx, "list-configs-by-category", &rows, category)
	}
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	return toConfigs(rows)
}

func (s *SQLStore) GetConfig(ctx context.Context, id types.ConfigID) (*types.Config, error) {
	return s.getConfig(ctx, "get-config", string(id))
}

func (s *SQLStore) GetConfigByCode(ctx context.Context, code string) (*types.Config, error) {
	return s.getConfig(ctx, "get-config-by-code", code)
}

func (s *SQLStore) getConfig(ctx context.Context, query, key string) (*types.Config, error) {
	var row configRow
	if err := s.q.GetContext(ctx, query, &row, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrConfigNotFound
		}
		return nil, fmt.Errorf("get config %s: %w", key, err)
	}
	cfg, err := row.toConfig()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *SQLStore) CreateConfig(ctx context.Context, cfg *types.Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = types.NewConfigID()
	}
	name, description, err := encodeNames(cfg.Name, cfg.Description)
	if err != nil {
		return err
	}
	now := s.timestamp()
	cfg.CreatedAt, cfg.UpdatedAt = now, now

	_, err = s.q.ExecContext(ctx, "insert-config",
		cfg.ID, cfg.Code, cfg.Category, name, description, nullJSON(cfg.Settings),
		cfg.IsEnabled, cfg.SortOrder, utcPtr(cfg.ValidFrom), utcPtr(cfg.ValidTo), now, now)
	return writeErr("create config", cfg.Code, err)
}

func (s *SQLStore) UpdateConfig(ctx context.Context, cfg *types.Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	existing, err := s.GetConfig(ctx, cfg.ID)
	if err != nil {
		return err
	}
	name, description, err := encodeNames(cfg.Name, cfg.Description)
	if err != nil {
		return err
	}

	now := s.timestamp()
	_, err = s.q.ExecContext(ctx, "update-config",
		cfg.Code, cfg.Category, name, description, nullJSON(cfg.Settings),
		cfg.IsEnabled, cfg.SortOrder, utcPtr(cfg.ValidFrom), utcPtr(cfg.ValidTo), now, cfg.ID)
	if err := writeErr("update config", cfg.Code, err); err != nil {
		return err
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = now
	return nil
}

// DeleteConfig removes a config; its items go with it.
func (s *SQLStore) DeleteConfig(ctx context.Context, id types.ConfigID) error {
	res, err := s.q.ExecContext(ctx, "delete-config", id)
	if err != nil {
		return fmt.Errorf("delete config %s: %w", id, err)
	}
	return expectRow(res, types.ErrConfigNotFound)
}

// Config items

func (s *SQLStore) ListConfigItems(ctx context.Context, configID types.ConfigID) ([]types.ConfigItem, error) {
	var rows []configItemRow
	if err := s.q.SelectContext(ctx, "list-config-items", &rows, configID); err != nil {
		return nil, fmt.Errorf("list items of config %s: %w", configID, err)
	}
	items := make([]types.ConfigItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *SQLStore) GetConfigItem(ctx context.Context, id types.ConfigItemID) (*types.ConfigItem, error) {
	var row configItemRow
	if err := s.q.GetContext(ctx, "get-config-item", &row, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrConfigItemNotFound
		}
		return nil, fmt.Errorf("get config item %s: %w", id, err)
	}
	item, err := row.toItem()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *SQLStore) CreateConfigItem(ctx context.Context, item *types.ConfigItem) error {
	if item.ID == "" {
		item.ID = types.NewConfigItemID()
	}
	if err := validateConfigItem(item); err != nil {
		return err
	}
	if _, err := s.GetConfig(ctx, item.ConfigID); err != nil {
		return err
	}
	name, err := encodeJSON(item.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidRecord, err)
	}
	now := s.timestamp()
	item.CreatedAt, item.UpdatedAt = now, now

	_, err = s.q.ExecContext(ctx, "insert-config-item",
		item.ID, item.ConfigID, nullString(string(item.ParentID)), item.Code, name, nullString(item.Icon),
		nullJSON(item.Settings), item.IsEnabled, item.IsDefault, item.SortOrder, now, now)
	return writeErr("create config item", item.Code, err)
}

func (s *SQLStore) UpdateConfigItem(ctx context.Context, item *types.ConfigItem) error {
	if err := validateConfigItem(item); err != nil {
		return err
	}
	existing, err := s.GetConfigItem(ctx, item.ID)
	if err != nil {
		return err
	}
	if item.ConfigID != existing.ConfigID {
		if _, err := s.GetConfig(ctx, item.ConfigID); err != nil {
			return err
		}
	}
	name, err := encodeJSON(item.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidRecord, err)
	}

	now := s.timestamp()
	_, err = s.q.ExecContext(ctx, "update-config-item",
		item.ConfigID, nullString(string(item.ParentID)), item.Code, name, nullString(item.Icon),
		nullJSON(item.Settings), item.IsEnabled, item.IsDefault, item.SortOrder, now, item.ID)
	if err := writeErr("update config item", item.Code, err); err != nil {
		return err
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = now
	return nil
}

func (s *SQLStore) DeleteConfigItem(ctx context.Context, id types.ConfigItemID) error {
	res, err := s.q.ExecContext(ctx, "delete-config-item", id)
	if err != nil {
		return fmt.Errorf("delete config item %s: %w", id, err)
	}
	return expectRow(res, types.ErrConfigItemNotFound)
}

// Execution log

func (s *SQLStore) AppendExecutionLog(ctx context.Context, e *types.RuleExecutionLogEntry) error {
	if e.ID == "" {
		e.ID = types.NewLogEntryID()
	}
	_, err := s.q.ExecContext(ctx, "insert-execution-log",
		e.ID, e.RuleID, e.RuleCode, e.ContextType, e.ContextID, e.IsMatched, e.IsExecuted,
		nullJSON(e.Result), nullString(e.ErrorMessage), e.ExecutionTime.Microseconds(), e.ExecutedAt.UTC())
	if err != nil {
		return fmt.Errorf("append execution log for rule %s: %w", e.RuleCode, err)
	}
	return nil
}

func (s *SQLStore) ListExecutionLogs(ctx context.Context, ruleID types.RuleID, limit int) ([]types.RuleExecutionLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	var rows []executionLogRow
	var err error
	if ruleID == "" {
		err = s.q.SelectContext(ctx, "list-recent-execution-logs", &rows, limit)
	} else {
		err = s.q.SelectContext(ctx, "list-execution-logs", &rows, ruleID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	entries := make([]types.RuleExecutionLogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toEntry())
	}
	return entries, nil
}

// defaultLogLimit caps ListExecutionLogs when the caller passes no limit.
const defaultLogLimit = 100

type ruleDoc struct {
	name, description, conditions, actions string
}

func encodeRule(rule *types.Rule) (ruleDoc, error) {
	var doc ruleDoc
	var err error
	if doc.name, doc.description, err = encodeNames(rule.Name, rule.Description); err != nil {
		return doc, err
	}
	conditions := rule.Conditions
	if conditions == nil {
		conditions = []types.Condition{}
	}
	if doc.conditions, err = encodeJSON(conditions); err != nil {
		return doc, fmt.Errorf("%w: rule %q conditions: %v", types.ErrInvalidRecord, rule.Code, err)
	}
	actions := rule.Actions
	if actions == nil {
		actions = []types.Action{}
	}
	if doc.actions, err = encodeJSON(actions); err != nil {
		return doc, fmt.Errorf("%w: rule %q actions: %v", types.ErrInvalidRecord, rule.Code, err)
	}
	return doc, nil
}

func encodeNames(name, description types.LocalizedText) (string, string, error) {
	n, err := encodeJSON(name)
	if err != nil {
		return "", "", err
	}
	d, err := encodeJSON(description)
	if err != nil {
		return "", "", err
	}
	return n, d, nil
}

func toRules(rows []ruleRow) ([]types.Rule, error) {
	out := make([]types.Rule, 0, len(rows))
	for i := range rows {
		rule, err := rows[i].toRule()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func toConfigs(rows []configRow) ([]types.Config, error) {
	out := make([]types.Config, 0, len(rows))
	for i := range rows {
		cfg, err := rows[i].toConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func writeErr(op, code string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCode, code)
	}
	return fmt.Errorf("%s %s: %w", op, code, err)
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
