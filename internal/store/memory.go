package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

// MemoryStore implements Store in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	rules   []types.Rule // insertion order
	configs []types.Config
	items   []types.ConfigItem
	logs    []types.RuleExecutionLogEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) timestamp() time.Time {
	return m.now().UTC()
}

// Rules

func (m *MemoryStore) ListActiveRules(_ context.Context, ruleType string, now time.Time) ([]types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.Rule
	for i := range m.rules {
		if m.rules[i].RuleType == ruleType && m.rules[i].ActiveAt(now) {
			out = append(out, cloneRule(m.rules[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (m *MemoryStore) ListRules(_ context.Context, ruleType string) ([]types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Rule, 0, len(m.rules))
	for i := range m.rules {
		if ruleType == "" || m.rules[i].RuleType == ruleType {
			out = append(out, cloneRule(m.rules[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RuleType != b.RuleType {
			return a.RuleType < b.RuleType
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Code < b.Code
	})
	return out, nil
}

func (m *MemoryStore) GetRule(_ context.Context, id types.RuleID) (*types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.ruleIndex(func(r *types.Rule) bool { return r.ID == id })
	if i < 0 {
		return nil, types.ErrRuleNotFound
	}
	r := cloneRule(m.rules[i])
	return &r, nil
}

func (m *MemoryStore) GetRuleByCode(_ context.Context, code string) (*types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.ruleIndex(func(r *types.Rule) bool { return r.Code == code })
	if i < 0 {
		return nil, types.ErrRuleNotFound
	}
	r := cloneRule(m.rules[i])
	return &r, nil
}

func (m *MemoryStore) CreateRule(_ context.Context, rule *types.Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ruleIndex(func(r *types.Rule) bool { return r.Code == rule.Code }) >= 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCode, rule.Code)
	}
	if rule.ID == "" {
		rule.ID = types.NewRuleID()
	} else if m.ruleIndex(func(r *types.Rule) bool { return r.ID == rule.ID }) >= 0 {
		return fmt.Errorf("%w: rule id %s", types.ErrDuplicateCode, rule.ID)
	}

	now := m.timestamp()
	rule.CreatedAt, rule.UpdatedAt = now, now
	rule.ExecutionCount, rule.LastExecutedAt = 0, nil
	rule.ValidFrom, rule.ValidTo = utcPtr(rule.ValidFrom), utcPtr(rule.ValidTo)
	m.rules = append(m.rules, cloneRule(*rule))
	return nil
}

func (m *MemoryStore) UpdateRule(_ context.Context, rule *types.Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.ruleIndex(func(r *types.Rule) bool { return r.ID == rule.ID })
	if i < 0 {
		return types.ErrRuleNotFound
	}
	if m.ruleIndex(func(r *types.Rule) bool { return r.Code == rule.Code && r.ID != rule.ID }) >= 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCode, rule.Code)
	}

	existing := m.rules[i]
	rule.CreatedAt = existing.CreatedAt
	rule.ExecutionCount = existing.ExecutionCount
	rule.LastExecutedAt = existing.LastExecutedAt
	rule.UpdatedAt = m.timestamp()
	rule.ValidFrom, rule.ValidTo = utcPtr(rule.ValidFrom), utcPtr(rule.ValidTo)
	m.rules[i] = cloneRule(*rule)
	return nil
}

func (m *MemoryStore) DeleteRule(_ context.Context, id types.RuleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.ruleIndex(func(r *types.Rule) bool { return r.ID == id })
	if i < 0 {
		return types.ErrRuleNotFound
	}
	m.rules = slices.Delete(m.rules, i, i+1)
	return nil
}

func (m *MemoryStore) RecordExecution(_ context.Context, id types.RuleID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.ruleIndex(func(r *types.Rule) bool { return r.ID == id })
	if i < 0 {
		return types.ErrRuleNotFound
	}
	at = at.UTC()
	m.rules[i].ExecutionCount++
	m.rules[i].LastExecutedAt = &at
	return nil
}

func (m *MemoryStore) ruleIndex(match func(*types.Rule) bool) int {
	for i := range m.rules {
		if match(&m.rules[i]) {
			return i
		}
	}
	return -1
}

// Configs

func (m *MemoryStore) ListActiveConfigs(_ context.Context, category, code string, now time.Time) ([]types.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.Config
	for i := range m.configs {
		c := &m.configs[i]
		if c.Category != category || !c.ActiveAt(now) || (code != "" && c.Code != code) {
			continue
		}
		out = append(out, cloneConfig(*c))
	}
	sortConfigs(out)
	return out, nil
}

func (m *MemoryStore) ListConfigs(_ context.Context, category string) ([]types.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Config, 0, len(m.configs))
	for i := range m.configs {
		if category == "" || m.configs[i].Category == category {
			out = append(out, cloneConfig(m.configs[i]))
		}
	}
	sortConfigs(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (m *MemoryStore) GetConfig(_ context.Context, id types.ConfigID) (*types.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.configIndex(func(c *types.Config) bool { return c.ID == id })
	if i < 0 {
		return nil, types.ErrConfigNotFound
	}
	c := cloneConfig(m.configs[i])
	return &c, nil
}

func (m *MemoryStore) GetConfigByCode(_ context.Context, code string) (*types.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.configIndex(func(c *types.Config) bool { return c.Code == code })
	if i < 0 {
		return nil, types.ErrConfigNotFound
	}
	c := cloneConfig(m.configs[i])
	return &c, nil
}

func (m *MemoryStore) CreateConfig(_ context.Context, cfg *types.Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configIndex(func(c *types.Config) bool { return c.Code == cfg.Code }) >= 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCode, cfg.Code)
	}
	if cfg.ID == "" {
		cfg.ID = types.NewConfigID()
	}
	now := m.timestamp()
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	cfg.ValidFrom, cfg.ValidTo = utcPtr(cfg.ValidFrom), utcPtr(cfg.ValidTo)
	m.configs = append(m.configs, cloneConfig(*cfg))
	return nil
}

func (m *MemoryStore) UpdateConfig(_ context.Context, cfg *types.Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.configIndex(func(c *types.Config) bool { return c.ID == cfg.ID })
	if i < 0 {
		return types.ErrConfigNotFound
	}
	if m.configIndex(func(c *types.Config) bool { return c.Code == cfg.Code && c.ID != cfg.ID }) >= 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCode, cfg.Code)
	}
	cfg.CreatedAt = m.configs[i].CreatedAt
	cfg.UpdatedAt = m.timestamp()
	cfg.ValidFrom, cfg.ValidTo = utcPtr(cfg.ValidFrom), utcPtr(cfg.ValidTo)
	m.configs[i] = cloneConfig(*cfg)
	return nil
}

func (m *MemoryStore) DeleteConfig(_ context.Context, id types.ConfigID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.configIndex(func(c *types.Config) bool { return c.ID == id })
	if i < 0 {
		return types.ErrConfigNotFound
	}
	m.configs = slices.Delete(m.configs, i, i+1)
	m.items = slices.DeleteFunc(m.items, func(item types.ConfigItem) bool { return item.ConfigID == id })
	return nil
}

func (m *MemoryStore) configIndex(match func(*types.Config) bool) int {
	for i := range m.configs {
		if match(&m.configs[i]) {
			return i
		}
	}
	return -1
}

// Config items

func (m *MemoryStore) ListConfigItems(_ context.Context, configID types.ConfigID) ([]types.ConfigItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.ConfigItem
	for _, item := range m.items {
		if item.ConfigID == configID {
			out = append(out, cloneItem(item))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (m *MemoryStore) GetConfigItem(_ context.Context, id types.ConfigItemID) (*types.ConfigItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.itemIndex(func(item *types.ConfigItem) bool { return item.ID == id })
	if i < 0 {
		return nil, types.ErrConfigItemNotFound
	}
	item := cloneItem(m.items[i])
	return &item, nil
}

func (m *MemoryStore) CreateConfigItem(_ context.Context, item *types.ConfigItem) error {
	if item.ID == "" {
		item.ID = types.NewConfigItemID()
	}
	if err := validateConfigItem(item); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configIndex(func(c *types.Config) bool { return c.ID == item.ConfigID }) < 0 {
		return types.ErrConfigNotFound
	}
	if m.itemIndex(func(o *types.ConfigItem) bool { return o.ConfigID == item.ConfigID && o.Code == item.Code }) >= 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCode, item.Code)
	}
	now := m.timestamp()
	item.CreatedAt, item.UpdatedAt = now, now
	m.items = append(m.items, cloneItem(*item))
	return nil
}

func (m *MemoryStore) UpdateConfigItem(_ context.Context, item *types.ConfigItem) error {
	if err := validateConfigItem(item); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.itemIndex(func(o *types.ConfigItem) bool { return o.ID == item.ID })
	if i < 0 {
		return types.ErrConfigItemNotFound
	}
	if m.configIndex(func(c *types.Config) bool { return c.ID == item.ConfigID }) < 0 {
		return types.ErrConfigNotFound
	}
	if m.itemIndex(func(o *types.ConfigItem) bool {
		return o.ConfigID == item.ConfigID && o.Code == item.Code && o.ID != item.ID
	}) >= 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateCode, item.Code)
	}
	item.CreatedAt = m.items[i].CreatedAt
	item.UpdatedAt = m.timestamp()
	m.items[i] = cloneItem(*item)
	return nil
}

func (m *MemoryStore) DeleteConfigItem(_ context.Context, id types.ConfigItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.itemIndex(func(item *types.ConfigItem) bool { return item.ID == id })
	if i < 0 {
		return types.ErrConfigItemNotFound
	}
	m.items = slices.Delete(m.items, i, i+1)
	for j := range m.items {
		if m.items[j].ParentID == id {
			m.items[j].ParentID = ""
		}
	}
	return nil
}

func (m *MemoryStore) itemIndex(match func(*types.ConfigItem) bool) int {
	for i := range m.items {
		if match(&m.items[i]) {
			return i
		}
	}
	return -1
}

// Execution log

func (m *MemoryStore) AppendExecutionLog(_ context.Context, e *types.RuleExecutionLogEntry) error {
	if e.ID == "" {
		e.ID = types.NewLogEntryID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := *e
	entry.Result = slices.Clone(e.Result)
	m.logs = append(m.logs, entry)
	return nil
}

func (m *MemoryStore) ListExecutionLogs(_ context.Context, ruleID types.RuleID, limit int) ([]types.RuleExecutionLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.RuleExecutionLogEntry
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if ruleID == "" || m.logs[i].RuleID == ruleID {
			out = append(out, m.logs[i])
		}
	}
	return out, nil
}

func cloneRule(r types.Rule) types.Rule {
	r.Conditions = slices.Clone(r.Conditions)
	r.Actions = slices.Clone(r.Actions)
	return r
}

func cloneConfig(c types.Config) types.Config {
	c.Settings = slices.Clone(c.Settings)
	return c
}

func cloneItem(item types.ConfigItem) types.ConfigItem {
	item.Settings = slices.Clone(item.Settings)
	return item
}

func sortConfigs(cs []types.Config) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].SortOrder != cs[j].SortOrder {
			return cs[i].SortOrder < cs[j].SortOrder
		}
		return strings.Compare(cs[i].Code, cs[j].Code) < 0
	})
}
