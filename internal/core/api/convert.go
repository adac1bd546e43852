package api

import (
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/rulekeeper/internal/types"
)

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// contextField extracts the "context" object. Absent or null means an empty
// context; any other non-object value is rejected.
func contextField(req *structpb.Struct) (types.Context, error) {
	v, ok := req.GetFields()["context"]
	if !ok {
		return types.Context{}, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return types.Context{}, nil
	case *structpb.Value_StructValue:
		return types.Context(kind.StructValue.AsMap()), nil
	default:
		return nil, status.Error(codes.InvalidArgument, "context must be an object")
	}
}

// toStruct converts a JSON-tagged value to a Struct through its JSON form so
// field names match what the engine and the store emit.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
