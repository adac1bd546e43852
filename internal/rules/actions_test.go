package rules

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/solatis/rulekeeper/internal/types"
)

func applyAction(t *testing.T, action types.Action, facts Facts) any {
	t.Helper()
	spec, err := DecodeAction(action)
	if err != nil {
		t.Fatalf("DecodeAction(%s) error = %v, want nil", action.Type, err)
	}
	result, err := spec.apply(actionEnv{facts: facts, formulas: quietFormulas()})
	if err != nil {
		t.Fatalf("apply(%s) error = %v, want nil", action.Type, err)
	}
	return result
}

func TestDiscountAction(t *testing.T) {
	tests := []struct {
		name        string
		params      map[string]any
		orderAmount any
		want        DiscountResult
	}{
		{
			name:        "percent clamped to max",
			params:      map[string]any{"discountType": "percent", "value": float64(10), "maxAmount": float64(50)},
			orderAmount: float64(1000),
			want:        DiscountResult{DiscountAmount: 50, FinalAmount: 950},
		},
		{
			name:        "percent under max",
			params:      map[string]any{"discountType": "percent", "value": float64(10), "maxAmount": float64(50)},
			orderAmount: float64(300),
			want:        DiscountResult{DiscountAmount: 30, FinalAmount: 270},
		},
		{
			name:        "fixed",
			params:      map[string]any{"discountType": "fixed", "value": float64(100)},
			orderAmount: float64(600),
			want:        DiscountResult{DiscountAmount: 100, FinalAmount: 500},
		},
		{
			name:        "fixed clamped",
			params:      map[string]any{"discountType": "fixed", "value": float64(100), "maxAmount": float64(80)},
			orderAmount: float64(600),
			want:        DiscountResult{DiscountAmount: 80, FinalAmount: 520},
		},
		{
			name:        "zero max means uncapped",
			params:      map[string]any{"discountType": "percent", "value": float64(50), "maxAmount": float64(0)},
			orderAmount: float64(400),
			want:        DiscountResult{DiscountAmount: 200, FinalAmount: 200},
		},
		{
			name:        "missing order amount",
			params:      map[string]any{"discountType": "percent", "value": float64(10)},
			orderAmount: nil,
			want:        DiscountResult{DiscountAmount: 0, FinalAmount: 0},
		},
		{
			name:        "numeric string order amount",
			params:      map[string]any{"discountType": "percent", "value": "10"},
			orderAmount: "500",
			want:        DiscountResult{DiscountAmount: 50, FinalAmount: 450},
		},
		{
			name:        "delivery fee target",
			params:      map[string]any{"discountType": "fixed", "value": float64(0), "applyTo": "delivery_fee"},
			orderAmount: float64(900),
			want:        DiscountResult{DiscountAmount: 0, FinalAmount: 900, ApplyTo: "delivery_fee"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := ContextFacts{"orderAmount": tt.orderAmount}
			got := applyAction(t, types.Action{Type: "discount", Params: tt.params}, facts)
			if got != tt.want {
				t.Errorf("discount = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGivePointsAction(t *testing.T) {
	facts := ContextFacts{"orderAmount": float64(200)}

	got := applyAction(t, types.Action{Type: "givePoints", Params: map[string]any{
		"formula": "orderAmount * 1", "multiplier": 1.5,
	}}, facts)
	if got.(PointsResult).Points != 300 {
		t.Errorf("points = %v, want 300", got)
	}

	got = applyAction(t, types.Action{Type: "givePoints", Params: map[string]any{
		"formula": "100", "reason": "level bonus",
	}}, facts)
	if want := (PointsResult{Points: 100, Reason: "level bonus"}); got != want {
		t.Errorf("points = %+v, want %+v", got, want)
	}

	got = applyAction(t, types.Action{Type: "givePoints", Params: map[string]any{
		"formula": "orderAmount * ", "multiplier": float64(2),
	}}, facts)
	if got.(PointsResult).Points != 0 {
		t.Errorf("points for broken formula = %v, want 0", got)
	}
}

func TestGivePointsAction_Overflow(t *testing.T) {
	actions := []types.Action{
		{Type: "givePoints", Params: map[string]any{"formula": "big", "multiplier": 1e10}},
		{Type: "givePoints", Params: map[string]any{"formula": "10"}},
	}
	outcome := quietEvaluator().ExecuteActions(actions, ContextFacts{"big": 1e300})

	if outcome.Success {
		t.Error("outcome.Success = true, want false")
	}
	if len(outcome.Actions) != 2 {
		t.Fatalf("len(Actions) = %d, want 2", len(outcome.Actions))
	}
	if a := outcome.Actions[0]; a.Success || a.Result != nil || a.Error == "" {
		t.Errorf("overflowing action = %+v, want failure without result", a)
	}
	if a := outcome.Actions[1]; !a.Success || a.Result != (PointsResult{Points: 10}) {
		t.Errorf("sibling action = %+v, want 10 points", a)
	}
	if _, err := json.Marshal(outcome); err != nil {
		t.Errorf("json.Marshal(outcome) error = %v, want nil", err)
	}
}

func TestGiveCouponAction(t *testing.T) {
	got := applyAction(t, types.Action{Type: "giveCoupon", Params: map[string]any{"couponCode": "BDAY"}}, ContextFacts{})
	if want := (CouponGrant{CouponCode: "BDAY", Quantity: 1}); got != want {
		t.Errorf("coupon = %+v, want %+v", got, want)
	}

	got = applyAction(t, types.Action{Type: "giveCoupon", Params: map[string]any{"couponId": float64(7), "quantity": float64(3)}}, ContextFacts{})
	if want := (CouponGrant{CouponID: float64(7), Quantity: 3}); got != want {
		t.Errorf("coupon = %+v, want %+v", got, want)
	}
}

func TestSendNotificationAction(t *testing.T) {
	got := applyAction(t, types.Action{Type: "sendNotification", Params: map[string]any{
		"channel": "push", "template": "birthday", "data": "hello",
	}}, ContextFacts{})
	if want := (NotificationPayload{Channel: "push", Template: "birthday", Data: "hello"}); got != want {
		t.Errorf("notification = %+v, want %+v", got, want)
	}
}

func TestUpgradeMemberAction(t *testing.T) {
	tests := []struct {
		name   string
		action types.Action
	}{
		{"level", types.Action{Type: "upgradeMember", Params: map[string]any{"level": "silver"}}},
		{"newLevel", types.Action{Type: "upgradeMember", Params: map[string]any{"newLevel": "silver"}}},
		{"legacy tag", types.Action{Type: "updateUserLevel", Params: map[string]any{"level": "silver"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyAction(t, tt.action, ContextFacts{})
			if got != (MemberLevelChange{Level: "silver"}) {
				t.Errorf("level change = %+v, want silver", got)
			}
		})
	}
}

func TestDecodeAction_Errors(t *testing.T) {
	tests := []struct {
		name    string
		action  types.Action
		wantErr error
	}{
		{"unknown type", types.Action{Type: "teleport"}, types.ErrUnknownActionType},
		{"empty type", types.Action{}, types.ErrUnknownActionType},
		{"bad discount type", types.Action{Type: "discount", Params: map[string]any{"discountType": "bogo", "value": float64(1)}}, types.ErrInvalidActionParams},
		{"missing discount value", types.Action{Type: "discount", Params: map[string]any{"discountType": "fixed"}}, types.ErrInvalidActionParams},
		{"non-numeric value", types.Action{Type: "discount", Params: map[string]any{"discountType": "fixed", "value": "lots"}}, types.ErrInvalidActionParams},
		{"non-numeric multiplier", types.Action{Type: "givePoints", Params: map[string]any{"formula": "1", "multiplier": "x"}}, types.ErrInvalidActionParams},
		{"zero quantity", types.Action{Type: "giveCoupon", Params: map[string]any{"quantity": float64(0)}}, types.ErrInvalidActionParams},
		{"fractional quantity", types.Action{Type: "giveCoupon", Params: map[string]any{"quantity": 1.5}}, types.ErrInvalidActionParams},
		{"missing level", types.Action{Type: "upgradeMember", Params: map[string]any{}}, types.ErrInvalidActionParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAction(tt.action)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeAction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
