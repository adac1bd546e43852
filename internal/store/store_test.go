package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/solatis/rulekeeper/internal/core/db"
	"github.com/solatis/rulekeeper/internal/types"
)

// storeFactory returns a fresh, empty store.
type storeFactory func(t *testing.T) Store

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v, want nil", err)
	}
	if _, err := db.MigrateUp(ctx, conn); err != nil {
		conn.Close()
		t.Fatalf("db.MigrateUp() error = %v, want nil", err)
	}
	s, err := NewSQLStore(conn)
	if err != nil {
		conn.Close()
		t.Fatalf("NewSQLStore() error = %v, want nil", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemStore(t *testing.T) Store {
	return NewMemoryStore()
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, newMemStore)
}

func TestSQLStore_SQLite(t *testing.T) {
	runStoreSuite(t, newSQLiteStore)
}

// runStoreSuite checks behaviour every Store implementation shares.
func runStoreSuite(t *testing.T, newStore storeFactory) {
	t.Run("rule lifecycle", func(t *testing.T) { testRuleLifecycle(t, newStore(t)) })
	t.Run("rule validation", func(t *testing.T) { testRuleValidation(t, newStore(t)) })
	t.Run("active rules", func(t *testing.T) { testActiveRules(t, newStore(t)) })
	t.Run("record execution", func(t *testing.T) { testRecordExecution(t, newStore(t)) })
	t.Run("concurrent increments", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
	t.Run("configs", func(t *testing.T) { testConfigs(t, newStore(t)) })
	t.Run("config items", func(t *testing.T) { testConfigItems(t, newStore(t)) })
	t.Run("execution log", func(t *testing.T) { testExecutionLog(t, newStore(t)) })
}

func sampleRule(code, ruleType string, priority int) *types.Rule {
	return &types.Rule{
		Code:     code,
		Name:     types.LocalizedText{En: code, Ru: "правило"},
		RuleType: ruleType,
		Conditions: []types.Condition{
			{Field: "orderAmount", Operator: ">=", Value: float64(500), Logic: types.LogicAnd},
			{Field: "user.level", Operator: "in", Value: []any{"gold", "silver"}},
		},
		Actions: []types.Action{
			{Type: "discount", Params: map[string]any{"discountType": "fixed", "value": float64(50)}},
		},
		Priority:  priority,
		IsEnabled: true,
	}
}

func testRuleLifecycle(t *testing.T, s Store) {
	ctx := context.Background()

	rule := sampleRule("reduce_50", "coupon", 10)
	rule.MutexGroup = "welcome"
	if err := s.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v, want nil", err)
	}
	if rule.ID == "" || rule.CreatedAt.IsZero() {
		t.Fatalf("CreateRule() left ID %q CreatedAt %v unset", rule.ID, rule.CreatedAt)
	}

	got, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v, want nil", err)
	}
	if got.Code != "reduce_50" || got.MutexGroup != "welcome" || got.Name.Ru != "правило" {
		t.Errorf("GetRule() = %+v, want stored fields back", got)
	}
	if len(got.Conditions) != 2 || got.Conditions[1].Operator != "in" || got.Conditions[0].Logic != types.LogicAnd {
		t.Errorf("Conditions = %+v, want both conditions in order", got.Conditions)
	}
	if v, ok := got.Actions[0].Params["value"].(float64); !ok || v != 50 {
		t.Errorf("action value = %v, want 50", got.Actions[0].Params["value"])
	}

	byCode, err := s.GetRuleByCode(ctx, "reduce_50")
	if err != nil || byCode.ID != rule.ID {
		t.Errorf("GetRuleByCode() = %v, %v; want rule %s", byCode, err, rule.ID)
	}

	dup := sampleRule("reduce_50", "coupon", 1)
	if err := s.CreateRule(ctx, dup); !errors.Is(err, types.ErrDuplicateCode) {
		t.Errorf("CreateRule(duplicate) error = %v, want ErrDuplicateCode", err)
	}

	rule.Priority = 99
	rule.MutexGroup = ""
	if err := s.UpdateRule(ctx, rule); err != nil {
		t.Fatalf("UpdateRule() error = %v, want nil", err)
	}
	got, _ = s.GetRule(ctx, rule.ID)
	if got.Priority != 99 || got.MutexGroup != "" {
		t.Errorf("after update priority = %d mutex = %q, want 99 and empty", got.Priority, got.MutexGroup)
	}

	other := sampleRule("other", "coupon", 1)
	if err := s.CreateRule(ctx, other); err != nil {
		t.Fatalf("CreateRule(other) error = %v, want nil", err)
	}
	other.Code = "reduce_50"
	if err := s.UpdateRule(ctx, other); !errors.Is(err, types.ErrDuplicateCode) {
		t.Errorf("UpdateRule(code clash) error = %v, want ErrDuplicateCode", err)
	}

	missing := sampleRule("ghost", "coupon", 1)
	missing.ID = types.NewRuleID()
	if err := s.UpdateRule(ctx, missing); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("UpdateRule(missing) error = %v, want ErrRuleNotFound", err)
	}

	all, err := s.ListRules(ctx, "")
	if err != nil || len(all) != 2 {
		t.Errorf("ListRules() = %d rules, %v; want 2", len(all), err)
	}

	if err := s.DeleteRule(ctx, rule.ID); err != nil {
		t.Fatalf("DeleteRule() error = %v, want nil", err)
	}
	if _, err := s.GetRule(ctx, rule.ID); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("GetRule(deleted) error = %v, want ErrRuleNotFound", err)
	}
	if err := s.DeleteRule(ctx, rule.ID); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("DeleteRule(deleted) error = %v, want ErrRuleNotFound", err)
	}
}

func testRuleValidation(t *testing.T, s Store) {
	ctx := context.Background()
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(r *types.Rule)
	}{
		{"missing code", func(r *types.Rule) { r.Code = "" }},
		{"missing type", func(r *types.Rule) { r.RuleType = "" }},
		{"condition without field", func(r *types.Rule) { r.Conditions[0].Field = "" }},
		{"condition without operator", func(r *types.Rule) { r.Conditions[1].Operator = "" }},
		{"action without type", func(r *types.Rule) { r.Actions[0].Type = "" }},
		{"inverted window", func(r *types.Rule) { r.ValidFrom, r.ValidTo = &from, &to }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleRule("invalid", "coupon", 1)
			tt.mutate(r)
			if err := s.CreateRule(ctx, r); !errors.Is(err, types.ErrInvalidRecord) {
				t.Errorf("CreateRule() error = %v, want ErrInvalidRecord", err)
			}
		})
	}
}

func testActiveRules(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	low := sampleRule("low", "coupon", 1)
	high := sampleRule("high", "coupon", 50)
	disabled := sampleRule("disabled", "coupon", 90)
	disabled.IsEnabled = false
	expired := sampleRule("expired", "coupon", 80)
	expired.ValidTo = &past
	upcoming := sampleRule("upcoming", "coupon", 70)
	upcoming.ValidFrom = &future
	windowed := sampleRule("windowed", "coupon", 20)
	windowed.ValidFrom, windowed.ValidTo = &past, &future
	points := sampleRule("points", "points", 100)

	for _, r := range []*types.Rule{low, high, disabled, expired, upcoming, windowed, points} {
		if err := s.CreateRule(ctx, r); err != nil {
			t.Fatalf("CreateRule(%s) error = %v, want nil", r.Code, err)
		}
	}

	got, err := s.ListActiveRules(ctx, "coupon", now)
	if err != nil {
		t.Fatalf("ListActiveRules() error = %v, want nil", err)
	}
	var codes []string
	for _, r := range got {
		codes = append(codes, r.Code)
	}
	want := []string{"high", "windowed", "low"}
	if len(codes) != len(want) {
		t.Fatalf("ListActiveRules() = %v, want %v", codes, want)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("ListActiveRules() = %v, want %v", codes, want)
			break
		}
	}

	byType, err := s.ListRules(ctx, "points")
	if err != nil || len(byType) != 1 || byType[0].Code != "points" {
		t.Errorf("ListRules(points) = %+v, %v; want only points", byType, err)
	}
}

func testRecordExecution(t *testing.T, s Store) {
	ctx := context.Background()
	rule := sampleRule("counted", "coupon", 1)
	if err := s.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v, want nil", err)
	}

	at := time.Date(2026, 5, 5, 10, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := s.RecordExecution(ctx, rule.ID, at); err != nil {
			t.Fatalf("RecordExecution() error = %v, want nil", err)
		}
	}

	got, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v, want nil", err)
	}
	if got.ExecutionCount != 3 {
		t.Errorf("ExecutionCount = %d, want 3", got.ExecutionCount)
	}
	if got.LastExecutedAt == nil || !got.LastExecutedAt.Equal(at) {
		t.Errorf("LastExecutedAt = %v, want %v", got.LastExecutedAt, at)
	}

	// Updates do not reset counters.
	got.Priority = 7
	if err := s.UpdateRule(ctx, got); err != nil {
		t.Fatalf("UpdateRule() error = %v, want nil", err)
	}
	again, _ := s.GetRule(ctx, rule.ID)
	if again.ExecutionCount != 3 {
		t.Errorf("ExecutionCount after update = %d, want 3", again.ExecutionCount)
	}

	if err := s.RecordExecution(ctx, types.NewRuleID(), at); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("RecordExecution(missing) error = %v, want ErrRuleNotFound", err)
	}
}

func testConcurrentIncrements(t *testing.T, s Store) {
	ctx := context.Background()
	rule := sampleRule("hot", "coupon", 1)
	if err := s.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule() error = %v, want nil", err)
	}

	const workers, perWorker = 8, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := s.RecordExecution(ctx, rule.ID, time.Now()); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("RecordExecution() error = %v, want nil", err)
	}

	got, _ := s.GetRule(ctx, rule.ID)
	if got.ExecutionCount != workers*perWorker {
		t.Errorf("ExecutionCount = %d, want %d", got.ExecutionCount, workers*perWorker)
	}
}

func testConfigs(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	configs := []*types.Config{
		{Code: "card", Category: "payment", IsEnabled: true, SortOrder: 2, Settings: json.RawMessage(`{"provider":"stripe"}`)},
		{Code: "cash", Category: "payment", IsEnabled: true, SortOrder: 1},
		{Code: "crypto", Category: "payment", IsEnabled: false, SortOrder: 0},
		{Code: "cheque", Category: "payment", IsEnabled: true, SortOrder: 0, ValidTo: &past},
		{Code: "courier", Category: "delivery", IsEnabled: true},
	}
	for _, c := range configs {
		if err := s.CreateConfig(ctx, c); err != nil {
			t.Fatalf("CreateConfig(%s) error = %v, want nil", c.Code, err)
		}
	}

	active, err := s.ListActiveConfigs(ctx, "payment", "", now)
	if err != nil {
		t.Fatalf("ListActiveConfigs() error = %v, want nil", err)
	}
	if len(active) != 2 || active[0].Code != "cash" || active[1].Code != "card" {
		t.Fatalf("ListActiveConfigs() = %+v, want cash then card", active)
	}
	var settings map[string]string
	if err := json.Unmarshal(active[1].Settings, &settings); err != nil || settings["provider"] != "stripe" {
		t.Errorf("card settings = %s, want provider stripe", active[1].Settings)
	}
	if active[0].Settings != nil {
		t.Errorf("cash settings = %s, want nil", active[0].Settings)
	}

	one, err := s.ListActiveConfigs(ctx, "payment", "card", now)
	if err != nil || len(one) != 1 || one[0].Code != "card" {
		t.Errorf("ListActiveConfigs(card) = %+v, %v; want card", one, err)
	}

	if err := s.CreateConfig(ctx, &types.Config{Code: "cash", Category: "payment"}); !errors.Is(err, types.ErrDuplicateCode) {
		t.Errorf("CreateConfig(duplicate) error = %v, want ErrDuplicateCode", err)
	}
	if err := s.CreateConfig(ctx, &types.Config{Code: "nocat"}); !errors.Is(err, types.ErrInvalidRecord) {
		t.Errorf("CreateConfig(no category) error = %v, want ErrInvalidRecord", err)
	}

	all, err := s.ListConfigs(ctx, "")
	if err != nil || len(all) != 5 || all[0].Category != "delivery" {
		t.Errorf("ListConfigs() = %d configs, %v; want 5 with delivery first", len(all), err)
	}

	cash := configs[1]
	cash.IsEnabled = false
	if err := s.UpdateConfig(ctx, cash); err != nil {
		t.Fatalf("UpdateConfig() error = %v, want nil", err)
	}
	got, err := s.GetConfigByCode(ctx, "cash")
	if err != nil || got.IsEnabled {
		t.Errorf("GetConfigByCode(cash) = %+v, %v; want disabled", got, err)
	}

	if err := s.DeleteConfig(ctx, cash.ID); err != nil {
		t.Fatalf("DeleteConfig() error = %v, want nil", err)
	}
	if _, err := s.GetConfig(ctx, cash.ID); !errors.Is(err, types.ErrConfigNotFound) {
		t.Errorf("GetConfig(deleted) error = %v, want ErrConfigNotFound", err)
	}
}

func testConfigItems(t *testing.T, s Store) {
	ctx := context.Background()
	sugar := &types.Config{Code: "sugar", Category: "product_option", IsEnabled: true}
	if err := s.CreateConfig(ctx, sugar); err != nil {
		t.Fatalf("CreateConfig() error = %v, want nil", err)
	}

	items := []*types.ConfigItem{
		{ConfigID: sugar.ID, Code: "full", IsEnabled: true, SortOrder: 3},
		{ConfigID: sugar.ID, Code: "half", IsEnabled: true, IsDefault: true, SortOrder: 2},
		{ConfigID: sugar.ID, Code: "none", IsEnabled: false, SortOrder: 1},
	}
	for _, item := range items {
		if err := s.CreateConfigItem(ctx, item); err != nil {
			t.Fatalf("CreateConfigItem(%s) error = %v, want nil", item.Code, err)
		}
	}

	got, err := s.ListConfigItems(ctx, sugar.ID)
	if err != nil {
		t.Fatalf("ListConfigItems() error = %v, want nil", err)
	}
	if len(got) != 3 || got[0].Code != "none" || got[2].Code != "full" {
		t.Errorf("ListConfigItems() = %+v, want none, half, full", got)
	}

	dup := &types.ConfigItem{ConfigID: sugar.ID, Code: "half"}
	if err := s.CreateConfigItem(ctx, dup); !errors.Is(err, types.ErrDuplicateCode) {
		t.Errorf("CreateConfigItem(duplicate) error = %v, want ErrDuplicateCode", err)
	}
	orphan := &types.ConfigItem{ConfigID: types.NewConfigID(), Code: "x"}
	if err := s.CreateConfigItem(ctx, orphan); !errors.Is(err, types.ErrConfigNotFound) {
		t.Errorf("CreateConfigItem(orphan) error = %v, want ErrConfigNotFound", err)
	}

	half := items[1]
	half.Icon = "half.svg"
	if err := s.UpdateConfigItem(ctx, half); err != nil {
		t.Fatalf("UpdateConfigItem() error = %v, want nil", err)
	}
	reloaded, err := s.GetConfigItem(ctx, half.ID)
	if err != nil || reloaded.Icon != "half.svg" || !reloaded.IsDefault {
		t.Errorf("GetConfigItem() = %+v, %v; want icon half.svg", reloaded, err)
	}

	if err := s.DeleteConfigItem(ctx, items[2].ID); err != nil {
		t.Fatalf("DeleteConfigItem() error = %v, want nil", err)
	}
	if err := s.DeleteConfigItem(ctx, items[2].ID); !errors.Is(err, types.ErrConfigItemNotFound) {
		t.Errorf("DeleteConfigItem(deleted) error = %v, want ErrConfigItemNotFound", err)
	}

	// Deleting a config removes its items.
	if err := s.DeleteConfig(ctx, sugar.ID); err != nil {
		t.Fatalf("DeleteConfig() error = %v, want nil", err)
	}
	if _, err := s.GetConfigItem(ctx, half.ID); !errors.Is(err, types.ErrConfigItemNotFound) {
		t.Errorf("GetConfigItem(after config delete) error = %v, want ErrConfigItemNotFound", err)
	}
}

func testExecutionLog(t *testing.T, s Store) {
	ctx := context.Background()
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	ruleA, ruleB := types.NewRuleID(), types.NewRuleID()

	entries := []*types.RuleExecutionLogEntry{
		{RuleID: ruleA, RuleCode: "a", ContextType: "order", ContextID: "42", IsMatched: true, IsExecuted: true,
			Result: json.RawMessage(`{"success":true}`), ExecutionTime: 1500 * time.Microsecond, ExecutedAt: at},
		{RuleID: ruleB, RuleCode: "b", ContextType: "unknown", ExecutedAt: at},
		{RuleID: ruleA, RuleCode: "a", ContextType: "order", IsMatched: true, ErrorMessage: "boom", ExecutedAt: at.Add(time.Second)},
	}
	for _, e := range entries {
		e.ID = types.NewLogEntryID()
		if err := s.AppendExecutionLog(ctx, e); err != nil {
			t.Fatalf("AppendExecutionLog() error = %v, want nil", err)
		}
	}

	got, err := s.ListExecutionLogs(ctx, ruleA, 10)
	if err != nil {
		t.Fatalf("ListExecutionLogs() error = %v, want nil", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ListExecutionLogs(a)) = %d, want 2", len(got))
	}
	if got[0].ErrorMessage != "boom" {
		t.Errorf("newest entry error = %q, want boom", got[0].ErrorMessage)
	}
	first := got[1]
	if !first.IsMatched || !first.IsExecuted || first.ContextID != "42" || first.ExecutionTime != 1500*time.Microsecond {
		t.Errorf("first entry = %+v, want stored fields back", first)
	}
	var result map[string]bool
	if err := json.Unmarshal(first.Result, &result); err != nil || !result["success"] {
		t.Errorf("first entry result = %s, want success true", first.Result)
	}
	if !first.ExecutedAt.Equal(at) {
		t.Errorf("ExecutedAt = %v, want %v", first.ExecutedAt, at)
	}

	recent, err := s.ListExecutionLogs(ctx, "", 2)
	if err != nil || len(recent) != 2 {
		t.Errorf("ListExecutionLogs(all, 2) = %d entries, %v; want 2", len(recent), err)
	}
}
