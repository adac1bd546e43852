package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solatis/rulekeeper/internal/types"
)

// Row types mirror the tables column for column. JSON documents travel as
// text so the same structs scan from SQLite TEXT and PostgreSQL JSONB.

type ruleRow struct {
	ID             string         `db:"id"`
	Code           string         `db:"code"`
	Name           string         `db:"name"`
	Description    string         `db:"description"`
	RuleType       string         `db:"rule_type"`
	Conditions     string         `db:"conditions"`
	Actions        string         `db:"actions"`
	Priority       int            `db:"priority"`
	MutexGroup     sql.NullString `db:"mutex_group"`
	IsEnabled      bool           `db:"is_enabled"`
	ValidFrom      *time.Time     `db:"valid_from"`
	ValidTo        *time.Time     `db:"valid_to"`
	ExecutionCount int64          `db:"execution_count"`
	LastExecutedAt *time.Time     `db:"last_executed_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *ruleRow) toRule() (types.Rule, error) {
	rule := types.Rule{
		ID:             types.RuleID(r.ID),
		Code:           r.Code,
		RuleType:       r.RuleType,
		Priority:       r.Priority,
		MutexGroup:     r.MutexGroup.String,
		IsEnabled:      r.IsEnabled,
		ValidFrom:      utcPtr(r.ValidFrom),
		ValidTo:        utcPtr(r.ValidTo),
		ExecutionCount: r.ExecutionCount,
		LastExecutedAt: utcPtr(r.LastExecutedAt),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if err := decodeJSON(r.Name, &rule.Name); err != nil {
		return rule, fmt.Errorf("rule %s name: %w", r.Code, err)
	}
	if err := decodeJSON(r.Description, &rule.Description); err != nil {
		return rule, fmt.Errorf("rule %s description: %w", r.Code, err)
	}
	if err := decodeJSON(r.Conditions, &rule.Conditions); err != nil {
		return rule, fmt.Errorf("rule %s conditions: %w", r.Code, err)
	}
	if err := decodeJSON(r.Actions, &rule.Actions); err != nil {
		return rule, fmt.Errorf("rule %s actions: %w", r.Code, err)
	}
	return rule, nil
}

type configRow struct {
	ID          string         `db:"id"`
	Code        string         `db:"code"`
	Category    string         `db:"category"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Settings    sql.NullString `db:"settings"`
	IsEnabled   bool           `db:"is_enabled"`
	SortOrder   int            `db:"sort_order"`
	ValidFrom   *time.Time     `db:"valid_from"`
	ValidTo     *time.Time     `db:"valid_to"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r *configRow) toConfig() (types.Config, error) {
	cfg := types.Config{
		ID:        types.ConfigID(r.ID),
		Code:      r.Code,
		Category:  r.Category,
		Settings:  rawJSON(r.Settings),
		IsEnabled: r.IsEnabled,
		SortOrder: r.SortOrder,
		ValidFrom: utcPtr(r.ValidFrom),
		ValidTo:   utcPtr(r.ValidTo),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if err := decodeJSON(r.Name, &cfg.Name); err != nil {
		return cfg, fmt.Errorf("config %s name: %w", r.Code, err)
	}
	if err := decodeJSON(r.Description, &cfg.Description); err != nil {
		return cfg, fmt.Errorf("config %s description: %w", r.Code, err)
	}
	return cfg, nil
}

type configItemRow struct {
	ID        string         `db:"id"`
	ConfigID  string         `db:"config_id"`
	ParentID  sql.NullString `db:"parent_id"`
	Code      string         `db:"code"`
	Name      string         `db:"name"`
	Icon      sql.NullString `db:"icon"`
	Settings  sql.NullString `db:"settings"`
	IsEnabled bool           `db:"is_enabled"`
	IsDefault bool           `db:"is_default"`
	SortOrder int            `db:"sort_order"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r *configItemRow) toItem() (types.ConfigItem, error) {
	item := types.ConfigItem{
		ID:        types.ConfigItemID(r.ID),
		ConfigID:  types.ConfigID(r.ConfigID),
		ParentID:  types.ConfigItemID(r.ParentID.String),
		Code:      r.Code,
		Icon:      r.Icon.String,
		Settings:  rawJSON(r.Settings),
		IsEnabled: r.IsEnabled,
		IsDefault: r.IsDefault,
		SortOrder: r.SortOrder,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if err := decodeJSON(r.Name, &item.Name); err != nil {
		return item, fmt.Errorf("config item %s name: %w", r.Code, err)
	}
	return item, nil
}

type executionLogRow struct {
	ID              string         `db:"id"`
	RuleID          string         `db:"rule_id"`
	RuleCode        string         `db:"rule_code"`
	ContextType     string         `db:"context_type"`
	ContextID       string         `db:"context_id"`
	IsMatched       bool           `db:"is_matched"`
	IsExecuted      bool           `db:"is_executed"`
	Result          sql.NullString `db:"result"`
	ErrorMessage    sql.NullString `db:"error_message"`
	ExecutionTimeUs int64          `db:"execution_time_us"`
	ExecutedAt      time.Time      `db:"executed_at"`
}

func (r *executionLogRow) toEntry() types.RuleExecutionLogEntry {
	return types.RuleExecutionLogEntry{
		ID:            types.LogEntryID(r.ID),
		RuleID:        types.RuleID(r.RuleID),
		RuleCode:      r.RuleCode,
		ContextType:   r.ContextType,
		ContextID:     r.ContextID,
		IsMatched:     r.IsMatched,
		IsExecuted:    r.IsExecuted,
		Result:        rawJSON(r.Result),
		ErrorMessage:  r.ErrorMessage.String,
		ExecutionTime: time.Duration(r.ExecutionTimeUs) * time.Microsecond,
		ExecutedAt:    r.ExecutedAt.UTC(),
	}
}

func decodeJSON(s string, dest any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dest)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func rawJSON(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}

// nullJSON maps an empty document to SQL NULL.
func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
