// Package api provides the gRPC facade over the rule engine.
//
// Messages are google.protobuf.Struct documents so clients can send the same
// JSON-shaped contexts the engine evaluates. The service is registered by
// hand with RuleEngine_ServiceDesc; there is no generated stub.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulekeeper/internal/rules"
	"github.com/solatis/rulekeeper/internal/types"
)

// Catalog is the read side of the rule catalogue the service needs beyond
// what the engine exposes.
type Catalog interface {
	GetRuleByCode(ctx context.Context, code string) (*types.Rule, error)
	ListRules(ctx context.Context, ruleType string) ([]types.Rule, error)
}

// RuleEngineService implements RuleEngineServer.
// Thin orchestration layer delegating to the engine and the catalogue.
type RuleEngineService struct {
	engine  *rules.Engine
	catalog Catalog
	logger  *slog.Logger
}

var _ RuleEngineServer = (*RuleEngineService)(nil)

// NewRuleEngineService creates service instance with dependencies.
func NewRuleEngineService(engine *rules.Engine, catalog Catalog, logger *slog.Logger) (*RuleEngineService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngineService{engine: engine, catalog: catalog, logger: logger}, nil
}

// FindAndExecuteRules runs the active rules of a type.
//
//	request:  {"ruleType": "order", "context": {...}}
//	response: {"results": [...], "effects": {...}}
func (s *RuleEngineService) FindAndExecuteRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ruleType := stringField(req, "ruleType")
	if ruleType == "" {
		return nil, status.Error(codes.InvalidArgument, "ruleType is required")
	}
	rc, err := contextField(req)
	if err != nil {
		return nil, err
	}

	results, err := s.engine.FindAndExecuteRules(ctx, ruleType, rc)
	if err != nil {
		return nil, s.toStatus("find and execute rules", err)
	}

	return toStruct(map[string]any{
		"results": results,
		"effects": rules.Summarize(results),
	})
}

// TestRule evaluates one rule by id or code without side effects.
//
//	request:  {"ruleId": "..."} or {"ruleCode": "..."}, plus "context"
//	response: {"matched": bool, "executed": bool, "result": {...}}
func (s *RuleEngineService) TestRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "ruleId")
	code := stringField(req, "ruleCode")
	if id == "" && code == "" {
		return nil, status.Error(codes.InvalidArgument, "ruleId or ruleCode is required")
	}
	rc, err := contextField(req)
	if err != nil {
		return nil, err
	}

	var result rules.TestResult
	if id != "" {
		result, err = s.engine.TestRule(ctx, types.RuleID(id), rc)
	} else {
		var rule *types.Rule
		rule, err = s.catalog.GetRuleByCode(ctx, code)
		if err == nil {
			result, err = s.engine.EvaluateRule(rule, rc)
		}
	}
	if err != nil {
		return nil, s.toStatus("test rule", err)
	}

	return toStruct(result)
}

// GetActiveConfig returns enabled, in-window configs of a category.
//
//	request:  {"category": "payment", "code": "cash"}  (code optional)
//	response: {"configs": [...]}
func (s *RuleEngineService) GetActiveConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	category := stringField(req, "category")
	if category == "" {
		return nil, status.Error(codes.InvalidArgument, "category is required")
	}

	configs, err := s.engine.GetActiveConfig(ctx, category, stringField(req, "code"))
	if err != nil {
		return nil, s.toStatus("get active config", err)
	}
	return toStruct(map[string]any{"configs": configs})
}

// GetConfigItems returns the enabled items of one config.
//
//	request:  {"configId": "..."}
//	response: {"items": [...]}
func (s *RuleEngineService) GetConfigItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	configID := stringField(req, "configId")
	if configID == "" {
		return nil, status.Error(codes.InvalidArgument, "configId is required")
	}

	items, err := s.engine.GetConfigItems(ctx, types.ConfigID(configID))
	if err != nil {
		return nil, s.toStatus("get config items", err)
	}
	return toStruct(map[string]any{"items": items})
}

// ListRules returns the catalogue, optionally narrowed to one rule type.
//
//	request:  {"ruleType": "order"}  (ruleType optional)
//	response: {"rules": [...]}
func (s *RuleEngineService) ListRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.catalog.ListRules(ctx, stringField(req, "ruleType"))
	if err != nil {
		return nil, s.toStatus("list rules", err)
	}
	return toStruct(map[string]any{"rules": list})
}
