// internal/rules/actions.go
package rules

import (
	"fmt"
	"math"

	"github.com/solatis/rulekeeper/internal/types"
)

/*
 * Action dispatch.
 *
 * Every action tag maps to one variant of the sealed ActionSpec interface.
 * DecodeAction turns a stored {type, params} document into its variant once,
 * validating params up front; apply() then computes the effect against the
 * request facts. Effects are returned, never applied: issuing coupons,
 * sending notifications and persisting member levels belong to the caller.
 *
 * Variants:
 *   - DiscountAction:      discount {discountType, value, maxAmount?, applyTo?}
 *   - GivePointsAction:    givePoints {formula, multiplier=1, reason?}
 *   - GiveCouponAction:    giveCoupon {couponId|couponCode, quantity=1}
 *   - SendNotificationAction: sendNotification {channel, template, data}
 *   - UpgradeMemberAction: upgradeMember {level} (newLevel accepted)
 *
 * A decode failure is carried alongside the action and reported as that
 * action's failure at execution time, so sibling actions still run.
 */

// ActionKind is the tag stored in an action's "type" field.
type ActionKind string

const (
	ActionDiscount         ActionKind = "discount"
	ActionGivePoints       ActionKind = "givePoints"
	ActionGiveCoupon       ActionKind = "giveCoupon"
	ActionSendNotification ActionKind = "sendNotification"
	ActionUpgradeMember    ActionKind = "upgradeMember"

	// actionUpdateUserLevel is the older tag for ActionUpgradeMember.
	actionUpdateUserLevel ActionKind = "updateUserLevel"
)

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// ActionSpec is a decoded action. The set of implementations is closed.
type ActionSpec interface {
	Kind() ActionKind
	apply(env actionEnv) (any, error)
}

// actionEnv is what handlers may read while computing an effect.
type actionEnv struct {
	facts    Facts
	formulas *FormulaEvaluator
}

// DiscountAction reduces orderAmount by a percentage or a fixed value.
type DiscountAction struct {
	Type      DiscountType
	Value     float64
	MaxAmount float64 // zero means no cap
	ApplyTo   string
}

// DiscountResult is the effect of a DiscountAction.
type DiscountResult struct {
	DiscountAmount float64 `json:"discountAmount"`
	FinalAmount    float64 `json:"finalAmount"`
	ApplyTo        string  `json:"applyTo,omitempty"`
}

func (DiscountAction) Kind() ActionKind { return ActionDiscount }

func (a DiscountAction) apply(env actionEnv) (any, error) {
	orderAmount := 0.0
	if v, ok := env.facts.Lookup("orderAmount"); ok {
		if n, ok := CoerceNumber(v); ok {
			orderAmount = n
		}
	}

	var discount float64
	switch a.Type {
	case DiscountPercent:
		discount = orderAmount * (a.Value / 100)
	case DiscountFixed:
		discount = a.Value
	}
	if a.MaxAmount > 0 && discount > a.MaxAmount {
		discount = a.MaxAmount
	}

	return DiscountResult{
		DiscountAmount: discount,
		FinalAmount:    orderAmount - discount,
		ApplyTo:        a.ApplyTo,
	}, nil
}

// GivePointsAction awards formula(context) * multiplier points.
type GivePointsAction struct {
	Formula    string
	Multiplier float64
	Reason     string
}

// PointsResult is the effect of a GivePointsAction.
type PointsResult struct {
	Points float64 `json:"points"`
	Reason string  `json:"reason,omitempty"`
}

func (GivePointsAction) Kind() ActionKind { return ActionGivePoints }

func (a GivePointsAction) apply(env actionEnv) (any, error) {
	points := env.formulas.Evaluate(a.Formula, env.facts) * a.Multiplier
	if math.IsInf(points, 0) || math.IsNaN(points) {
		return nil, fmt.Errorf("%w: givePoints result is not finite", types.ErrInvalidActionParams)
	}
	return PointsResult{Points: points, Reason: a.Reason}, nil
}

// GiveCouponAction grants coupons identified by id or code.
type GiveCouponAction struct {
	CouponID   any
	CouponCode string
	Quantity   int
}

// CouponGrant is the effect of a GiveCouponAction. CouponID is passed
// through as stored.
type CouponGrant struct {
	CouponID   any    `json:"couponId,omitempty"`
	CouponCode string `json:"couponCode,omitempty"`
	Quantity   int    `json:"quantity"`
}

func (GiveCouponAction) Kind() ActionKind { return ActionGiveCoupon }

func (a GiveCouponAction) apply(actionEnv) (any, error) {
	return CouponGrant{CouponID: a.CouponID, CouponCode: a.CouponCode, Quantity: a.Quantity}, nil
}

// SendNotificationAction describes a notification to dispatch.
type SendNotificationAction struct {
	Channel  string
	Template string
	Data     any
}

// NotificationPayload is the effect of a SendNotificationAction.
type NotificationPayload struct {
	Channel  string `json:"channel,omitempty"`
	Template string `json:"template,omitempty"`
	Data     any    `json:"data,omitempty"`
}

func (SendNotificationAction) Kind() ActionKind { return ActionSendNotification }

func (a SendNotificationAction) apply(actionEnv) (any, error) {
	return NotificationPayload{Channel: a.Channel, Template: a.Template, Data: a.Data}, nil
}

// UpgradeMemberAction moves the member to Level.
type UpgradeMemberAction struct {
	Level string
}

// MemberLevelChange is the effect of an UpgradeMemberAction.
type MemberLevelChange struct {
	Level string `json:"level"`
}

func (UpgradeMemberAction) Kind() ActionKind { return ActionUpgradeMember }

func (a UpgradeMemberAction) apply(actionEnv) (any, error) {
	return MemberLevelChange{Level: a.Level}, nil
}

// DecodeAction validates an action document and returns its variant.
func DecodeAction(action types.Action) (ActionSpec, error) {
	p := params(action.Params)

	switch ActionKind(action.Type) {
	case ActionDiscount:
		return decodeDiscount(p)

	case ActionGivePoints:
		multiplier, err := p.number("multiplier", 1)
		if err != nil {
			return nil, err
		}
		formula := ""
		if v, ok := p["formula"]; ok && v != nil {
			formula = CoerceText(v)
		}
		return GivePointsAction{Formula: formula, Multiplier: multiplier, Reason: p.text("reason")}, nil

	case ActionGiveCoupon:
		quantity, err := p.number("quantity", 1)
		if err != nil {
			return nil, err
		}
		if quantity < 1 || quantity != math.Trunc(quantity) {
			return nil, fmt.Errorf("%w: quantity must be a positive integer, got %v", types.ErrInvalidActionParams, quantity)
		}
		return GiveCouponAction{
			CouponID:   p["couponId"],
			CouponCode: p.text("couponCode"),
			Quantity:   int(quantity),
		}, nil

	case ActionSendNotification:
		return SendNotificationAction{
			Channel:  p.text("channel"),
			Template: p.text("template"),
			Data:     p["data"],
		}, nil

	case ActionUpgradeMember, actionUpdateUserLevel:
		level := p.text("level")
		if level == "" {
			level = p.text("newLevel")
		}
		if level == "" {
			return nil, fmt.Errorf("%w: upgradeMember requires level", types.ErrInvalidActionParams)
		}
		return UpgradeMemberAction{Level: level}, nil

	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownActionType, action.Type)
	}
}

func decodeDiscount(p params) (ActionSpec, error) {
	dt := DiscountType(p.text("discountType"))
	if dt != DiscountPercent && dt != DiscountFixed {
		return nil, fmt.Errorf("%w: discountType must be percent or fixed, got %q", types.ErrInvalidActionParams, dt)
	}
	if v, ok := p["value"]; !ok || v == nil {
		return nil, fmt.Errorf("%w: discount requires value", types.ErrInvalidActionParams)
	}
	value, err := p.number("value", 0)
	if err != nil {
		return nil, err
	}
	maxAmount, err := p.number("maxAmount", 0)
	if err != nil {
		return nil, err
	}
	return DiscountAction{Type: dt, Value: value, MaxAmount: maxAmount, ApplyTo: p.text("applyTo")}, nil
}

// params reads loosely typed action parameters.
type params map[string]any

// number returns the numeric param at key, or def when absent.
func (p params) number(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	n, ok := CoerceNumber(v)
	if !ok || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %s is not a number: %v", types.ErrInvalidActionParams, key, v)
	}
	return n, nil
}

// text returns the param at key as a string, or "" when absent.
func (p params) text(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return CoerceText(v)
}
