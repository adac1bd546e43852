package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulekeeper/internal/types"
)

// AdminServiceName is the fully qualified name of the catalogue management
// service.
const AdminServiceName = "rulekeeper.v1.RuleAdmin"

// Method names of the RuleAdmin service.
const (
	MethodCreateRule        = "CreateRule"
	MethodUpdateRule        = "UpdateRule"
	MethodDeleteRule        = "DeleteRule"
	MethodListConfigs       = "ListConfigs"
	MethodCreateConfig      = "CreateConfig"
	MethodUpdateConfig      = "UpdateConfig"
	MethodDeleteConfig      = "DeleteConfig"
	MethodListConfigItems   = "ListConfigItems"
	MethodCreateConfigItem  = "CreateConfigItem"
	MethodUpdateConfigItem  = "UpdateConfigItem"
	MethodDeleteConfigItem  = "DeleteConfigItem"
	MethodListExecutionLogs = "ListExecutionLogs"
)

// RuleAdminServer is the server API for the RuleAdmin service.
type RuleAdminServer interface {
	CreateRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConfigs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConfigItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateConfigItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateConfigItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteConfigItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListExecutionLogs(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRuleAdminServer registers srv on s.
func RegisterRuleAdminServer(s grpc.ServiceRegistrar, srv RuleAdminServer) {
	s.RegisterService(&RuleAdmin_ServiceDesc, srv)
}

func adminMethod(name string, call unaryMethod[RuleAdminServer]) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unaryHandler("/"+AdminServiceName+"/"+name, call)}
}

// RuleAdmin_ServiceDesc is the grpc.ServiceDesc for the RuleAdmin service.
var RuleAdmin_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*RuleAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		adminMethod(MethodCreateRule, RuleAdminServer.CreateRule),
		adminMethod(MethodUpdateRule, RuleAdminServer.UpdateRule),
		adminMethod(MethodDeleteRule, RuleAdminServer.DeleteRule),
		adminMethod(MethodListConfigs, RuleAdminServer.ListConfigs),
		adminMethod(MethodCreateConfig, RuleAdminServer.CreateConfig),
		adminMethod(MethodUpdateConfig, RuleAdminServer.UpdateConfig),
		adminMethod(MethodDeleteConfig, RuleAdminServer.DeleteConfig),
		adminMethod(MethodListConfigItems, RuleAdminServer.ListConfigItems),
		adminMethod(MethodCreateConfigItem, RuleAdminServer.CreateConfigItem),
		adminMethod(MethodUpdateConfigItem, RuleAdminServer.UpdateConfigItem),
		adminMethod(MethodDeleteConfigItem, RuleAdminServer.DeleteConfigItem),
		adminMethod(MethodListExecutionLogs, RuleAdminServer.ListExecutionLogs),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rulekeeper/v1/rule_admin",
}

// AdminStore is the catalogue surface the admin service writes through.
// Implementations validate records and enforce unique codes.
type AdminStore interface {
	CreateRule(ctx context.Context, rule *types.Rule) error
	UpdateRule(ctx context.Context, rule *types.Rule) error
	DeleteRule(ctx context.Context, id types.RuleID) error

	ListConfigs(ctx context.Context, category string) ([]types.Config, error)
	CreateConfig(ctx context.Context, cfg *types.Config) error
	UpdateConfig(ctx context.Context, cfg *types.Config) error
	DeleteConfig(ctx context.Context, id types.ConfigID) error

	ListConfigItems(ctx context.Context, configID types.ConfigID) ([]types.ConfigItem, error)
	CreateConfigItem(ctx context.Context, item *types.ConfigItem) error
	UpdateConfigItem(ctx context.Context, item *types.ConfigItem) error
	DeleteConfigItem(ctx context.Context, id types.ConfigItemID) error

	ListExecutionLogs(ctx context.Context, ruleID types.RuleID, limit int) ([]types.RuleExecutionLogEntry, error)
}

// RuleAdminService implements RuleAdminServer over an AdminStore.
// Updates replace the whole record; execution counters and creation
// timestamps are kept by the store.
type RuleAdminService struct {
	store  AdminStore
	logger *slog.Logger
}

var _ RuleAdminServer = (*RuleAdminService)(nil)

// NewRuleAdminService creates the admin service.
func NewRuleAdminService(store AdminStore, logger *slog.Logger) (*RuleAdminService, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleAdminService{store: store, logger: logger}, nil
}

// CreateRule stores a new rule.
//
//	request:  {"rule": {...}}
//	response: {"rule": {...}}  (with id and timestamps)
func (s *RuleAdminService) CreateRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var rule types.Rule
	if err := recordField(req, "rule", &rule); err != nil {
		return nil, err
	}
	if err := s.store.CreateRule(ctx, &rule); err != nil {
		return nil, s.toStatus("create rule", err)
	}
	s.logger.Info("rule created", "id", rule.ID, "code", rule.Code)
	return toStruct(map[string]any{"rule": rule})
}

// UpdateRule replaces the rule with the request's id.
func (s *RuleAdminService) UpdateRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var rule types.Rule
	if err := recordField(req, "rule", &rule); err != nil {
		return nil, err
	}
	if rule.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "rule.id is required")
	}
	if err := s.store.UpdateRule(ctx, &rule); err != nil {
		return nil, s.toStatus("update rule", err)
	}
	s.logger.Info("rule updated", "id", rule.ID, "code", rule.Code)
	return toStruct(map[string]any{"rule": rule})
}

// DeleteRule removes a rule. Its execution log is kept.
//
//	request: {"ruleId": "..."}
func (s *RuleAdminService) DeleteRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "ruleId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "ruleId is required")
	}
	if err := s.store.DeleteRule(ctx, types.RuleID(id)); err != nil {
		return nil, s.toStatus("delete rule", err)
	}
	s.logger.Info("rule deleted", "id", id)
	return &structpb.Struct{}, nil
}

// ListConfigs returns every config of a category, disabled ones included.
//
//	request:  {"category": "payment"}  (category optional)
//	response: {"configs": [...]}
func (s *RuleAdminService) ListConfigs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	configs, err := s.store.ListConfigs(ctx, stringField(req, "category"))
	if err != nil {
		return nil, s.toStatus("list configs", err)
	}
	return toStruct(map[string]any{"configs": configs})
}

// CreateConfig stores a new config.
func (s *RuleAdminService) CreateConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cfg types.Config
	if err := recordField(req, "config", &cfg); err != nil {
		return nil, err
	}
	if err := s.store.CreateConfig(ctx, &cfg); err != nil {
		return nil, s.toStatus("create config", err)
	}
	s.logger.Info("config created", "id", cfg.ID, "code", cfg.Code)
	return toStruct(map[string]any{"config": cfg})
}

// UpdateConfig replaces the config with the request's id.
func (s *RuleAdminService) UpdateConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var cfg types.Config
	if err := recordField(req, "config", &cfg); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "config.id is required")
	}
	if err := s.store.UpdateConfig(ctx, &cfg); err != nil {
		return nil, s.toStatus("update config", err)
	}
	s.logger.Info("config updated", "id", cfg.ID, "code", cfg.Code)
	return toStruct(map[string]any{"config": cfg})
}

// DeleteConfig removes a config.
//
//	request: {"configId": "..."}
func (s *RuleAdminService) DeleteConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "configId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "configId is required")
	}
	if err := s.store.DeleteConfig(ctx, types.ConfigID(id)); err != nil {
		return nil, s.toStatus("delete config", err)
	}
	s.logger.Info("config deleted", "id", id)
	return &structpb.Struct{}, nil
}

// ListConfigItems returns every item of a config, disabled ones included.
//
//	request:  {"configId": "..."}
//	response: {"items": [...]}
func (s *RuleAdminService) ListConfigItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "configId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "configId is required")
	}
	items, err := s.store.ListConfigItems(ctx, types.ConfigID(id))
	if err != nil {
		return nil, s.toStatus("list config items", err)
	}
	return toStruct(map[string]any{"items": items})
}

// CreateConfigItem stores a new item under an existing config.
func (s *RuleAdminService) CreateConfigItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var item types.ConfigItem
	if err := recordField(req, "item", &item); err != nil {
		return nil, err
	}
	if err := s.store.CreateConfigItem(ctx, &item); err != nil {
		return nil, s.toStatus("create config item", err)
	}
	s.logger.Info("config item created", "id", item.ID, "config", item.ConfigID, "code", item.Code)
	return toStruct(map[string]any{"item": item})
}

// UpdateConfigItem replaces the item with the request's id.
func (s *RuleAdminService) UpdateConfigItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var item types.ConfigItem
	if err := recordField(req, "item", &item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "item.id is required")
	}
	if err := s.store.UpdateConfigItem(ctx, &item); err != nil {
		return nil, s.toStatus("update config item", err)
	}
	s.logger.Info("config item updated", "id", item.ID, "code", item.Code)
	return toStruct(map[string]any{"item": item})
}

// DeleteConfigItem removes an item.
//
//	request: {"itemId": "..."}
func (s *RuleAdminService) DeleteConfigItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "itemId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "itemId is required")
	}
	if err := s.store.DeleteConfigItem(ctx, types.ConfigItemID(id)); err != nil {
		return nil, s.toStatus("delete config item", err)
	}
	s.logger.Info("config item deleted", "id", id)
	return &structpb.Struct{}, nil
}

// ListExecutionLogs returns audit entries newest first.
//
//	request:  {"ruleId": "...", "limit": 50}  (both optional)
//	response: {"logs": [...]}
func (s *RuleAdminService) ListExecutionLogs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := req.GetFields()["limit"].GetNumberValue()
	if limit < 0 || limit != float64(int(limit)) {
		return nil, status.Error(codes.InvalidArgument, "limit must be a non-negative integer")
	}
	logs, err := s.store.ListExecutionLogs(ctx, types.RuleID(stringField(req, "ruleId")), int(limit))
	if err != nil {
		return nil, s.toStatus("list execution logs", err)
	}
	return toStruct(map[string]any{"logs": logs})
}

func (s *RuleAdminService) toStatus(op string, err error) error {
	return statusFor(s.logger, op, err)
}

// recordField decodes the object under key into dest through its JSON form,
// so records use the same field names the service returns.
func recordField(req *structpb.Struct, key string, dest any) error {
	obj := req.GetFields()[key].GetStructValue()
	if obj == nil {
		return status.Errorf(codes.InvalidArgument, "%s must be an object", key)
	}
	data, err := protojson.Marshal(obj)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "%s: %v", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return status.Errorf(codes.InvalidArgument, "%s: %v", key, err)
	}
	return nil
}
