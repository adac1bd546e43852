package api

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulekeeper/internal/logging"
	"github.com/solatis/rulekeeper/internal/store"
	"github.com/solatis/rulekeeper/internal/types"
)

func newTestAdmin(t *testing.T, ms *store.MemoryStore) *RuleAdminService {
	t.Helper()
	admin, err := NewRuleAdminService(ms, logging.Discard())
	if err != nil {
		t.Fatalf("NewRuleAdminService() error = %v", err)
	}
	return admin
}

func recordID(resp *structpb.Struct, key string) string {
	return resp.GetFields()[key].GetStructValue().GetFields()["id"].GetStringValue()
}

func TestNewRuleAdminService_NilStore(t *testing.T) {
	if _, err := NewRuleAdminService(nil, nil); err == nil {
		t.Error("NewRuleAdminService(nil) error = nil, want error")
	}
}

func TestAdmin_RuleLifecycle(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	admin := newTestAdmin(t, ms)

	birthday := map[string]any{
		"code":      "birthday-points",
		"ruleType":  "points",
		"priority":  5,
		"isEnabled": true,
		"conditions": []any{
			map[string]any{"field": "user.isBirthday", "operator": "=", "value": true},
		},
		"actions": []any{
			map[string]any{"type": "givePoints", "params": map[string]any{"formula": "100"}},
		},
	}

	resp, err := admin.CreateRule(ctx, mustStruct(t, map[string]any{"rule": birthday}))
	if err != nil {
		t.Fatalf("CreateRule() error = %v, want nil", err)
	}
	id := recordID(resp, "rule")
	if id == "" {
		t.Fatal("CreateRule() returned no id")
	}
	stored, err := ms.GetRuleByCode(ctx, "birthday-points")
	if err != nil {
		t.Fatalf("GetRuleByCode() error = %v, want nil", err)
	}
	if string(stored.ID) != id || stored.Priority != 5 || len(stored.Actions) != 1 {
		t.Errorf("stored rule = %+v, want id %s priority 5 with one action", stored, id)
	}

	_, err = admin.CreateRule(ctx, mustStruct(t, map[string]any{"rule": birthday}))
	wantCode(t, err, codes.AlreadyExists)

	_, err = admin.CreateRule(ctx, mustStruct(t, map[string]any{"rule": map[string]any{"code": "no-type"}}))
	wantCode(t, err, codes.InvalidArgument)

	birthday["id"] = id
	birthday["priority"] = 7
	if _, err := admin.UpdateRule(ctx, mustStruct(t, map[string]any{"rule": birthday})); err != nil {
		t.Fatalf("UpdateRule() error = %v, want nil", err)
	}
	if stored, _ := ms.GetRule(ctx, types.RuleID(id)); stored == nil || stored.Priority != 7 {
		t.Errorf("priority after update = %+v, want 7", stored)
	}

	delete(birthday, "id")
	_, err = admin.UpdateRule(ctx, mustStruct(t, map[string]any{"rule": birthday}))
	wantCode(t, err, codes.InvalidArgument)

	if _, err := admin.DeleteRule(ctx, mustStruct(t, map[string]any{"ruleId": id})); err != nil {
		t.Fatalf("DeleteRule() error = %v, want nil", err)
	}
	if _, err := ms.GetRule(ctx, types.RuleID(id)); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("GetRule(deleted) error = %v, want ErrRuleNotFound", err)
	}
	_, err = admin.DeleteRule(ctx, mustStruct(t, map[string]any{"ruleId": id}))
	wantCode(t, err, codes.NotFound)
}

func TestAdmin_ConfigLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, ms := newTestService(t)
	admin := newTestAdmin(t, ms)

	resp, err := admin.CreateConfig(ctx, mustStruct(t, map[string]any{
		"config": map[string]any{"code": "card", "category": "payment", "isEnabled": true, "sortOrder": 1},
	}))
	if err != nil {
		t.Fatalf("CreateConfig() error = %v, want nil", err)
	}
	cardID := recordID(resp, "config")

	resp, err = admin.ListConfigs(ctx, mustStruct(t, map[string]any{"category": "payment"}))
	if err != nil {
		t.Fatalf("ListConfigs() error = %v, want nil", err)
	}
	if n := len(resp.GetFields()["configs"].GetListValue().GetValues()); n != 2 {
		t.Errorf("len(configs) = %d, want 2", n)
	}

	cash, err := ms.GetConfigByCode(ctx, "cash")
	if err != nil {
		t.Fatalf("GetConfigByCode() error = %v", err)
	}
	resp, err = admin.ListConfigItems(ctx, mustStruct(t, map[string]any{"configId": string(cash.ID)}))
	if err != nil {
		t.Fatalf("ListConfigItems() error = %v, want nil", err)
	}
	// Disabled items are listed for administration.
	if n := len(resp.GetFields()["items"].GetListValue().GetValues()); n != 3 {
		t.Errorf("len(items) = %d, want 3", n)
	}

	item := map[string]any{"configId": cardID, "code": "visa", "isEnabled": true}
	resp, err = admin.CreateConfigItem(ctx, mustStruct(t, map[string]any{"item": item}))
	if err != nil {
		t.Fatalf("CreateConfigItem() error = %v, want nil", err)
	}
	item["id"] = recordID(resp, "item")
	item["isEnabled"] = false
	if _, err := admin.UpdateConfigItem(ctx, mustStruct(t, map[string]any{"item": item})); err != nil {
		t.Fatalf("UpdateConfigItem() error = %v, want nil", err)
	}
	got, err := ms.GetConfigItem(ctx, types.ConfigItemID(item["id"].(string)))
	if err != nil || got.IsEnabled {
		t.Errorf("GetConfigItem() = %+v, %v, want disabled item", got, err)
	}

	item["configId"] = "missing"
	_, err = admin.UpdateConfigItem(ctx, mustStruct(t, map[string]any{"item": item}))
	wantCode(t, err, codes.NotFound)

	if _, err := admin.DeleteConfigItem(ctx, mustStruct(t, map[string]any{"itemId": item["id"]})); err != nil {
		t.Fatalf("DeleteConfigItem() error = %v, want nil", err)
	}
	if _, err := admin.DeleteConfig(ctx, mustStruct(t, map[string]any{"configId": cardID})); err != nil {
		t.Fatalf("DeleteConfig() error = %v, want nil", err)
	}

	resp, err = svc.GetActiveConfig(ctx, mustStruct(t, map[string]any{"category": "payment"}))
	if err != nil {
		t.Fatalf("GetActiveConfig() error = %v, want nil", err)
	}
	configs := resp.GetFields()["configs"].GetListValue().GetValues()
	if len(configs) != 1 || configs[0].GetStructValue().GetFields()["code"].GetStringValue() != "cash" {
		t.Errorf("active payment configs = %v, want only cash", configs)
	}
}

func TestAdmin_ListExecutionLogs(t *testing.T) {
	ctx := context.Background()
	svc, ms := newTestService(t)
	admin := newTestAdmin(t, ms)

	run := mustStruct(t, map[string]any{"ruleType": "order", "context": map[string]any{"orderAmount": 150}})
	for i := 0; i < 2; i++ {
		if _, err := svc.FindAndExecuteRules(ctx, run); err != nil {
			t.Fatalf("FindAndExecuteRules() error = %v, want nil", err)
		}
	}

	resp, err := admin.ListExecutionLogs(ctx, mustStruct(t, map[string]any{"limit": 1}))
	if err != nil {
		t.Fatalf("ListExecutionLogs() error = %v, want nil", err)
	}
	logs := resp.GetFields()["logs"].GetListValue().GetValues()
	if len(logs) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(logs))
	}
	if code := logs[0].GetStructValue().GetFields()["ruleCode"].GetStringValue(); code != "first-order" {
		t.Errorf("logs[0].ruleCode = %q, want first-order", code)
	}

	_, err = admin.ListExecutionLogs(ctx, mustStruct(t, map[string]any{"limit": -1}))
	wantCode(t, err, codes.InvalidArgument)
}

func TestAdmin_InvalidRequests(t *testing.T) {
	ctx := context.Background()
	admin := newTestAdmin(t, store.NewMemoryStore())

	tests := []struct {
		name string
		call func(context.Context, *structpb.Struct) (*structpb.Struct, error)
		req  map[string]any
	}{
		{"rule missing", admin.CreateRule, map[string]any{}},
		{"rule not an object", admin.CreateRule, map[string]any{"rule": "birthday"}},
		{"rule bad field type", admin.CreateRule, map[string]any{"rule": map[string]any{"code": "x", "ruleType": "points", "priority": "high"}}},
		{"config missing", admin.CreateConfig, map[string]any{}},
		{"config without id", admin.UpdateConfig, map[string]any{"config": map[string]any{"code": "x", "category": "payment"}}},
		{"item without id", admin.UpdateConfigItem, map[string]any{"item": map[string]any{"code": "x", "configId": "c"}}},
		{"delete rule without id", admin.DeleteRule, map[string]any{}},
		{"delete config without id", admin.DeleteConfig, map[string]any{}},
		{"delete item without id", admin.DeleteConfigItem, map[string]any{}},
		{"items without config", admin.ListConfigItems, map[string]any{}},
		{"fractional limit", admin.ListExecutionLogs, map[string]any{"limit": 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.call(ctx, mustStruct(t, tt.req))
			wantCode(t, err, codes.InvalidArgument)
		})
	}
}
