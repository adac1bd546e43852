// internal/rules/effects.go
package rules

/*
 * Effect aggregation.
 *
 * The engine only computes effects. Summarize folds the successful action
 * results of one run into totals (discount, points) and lists (coupons,
 * notifications) that the caller applies to the order and the member.
 */

// Effects aggregates the successful action results of a run so callers can
// apply them in one place.
type Effects struct {
	DiscountAmount    float64               `json:"discountAmount"`
	DeliveryFeeWaived bool                  `json:"deliveryFeeWaived"`
	Points            float64               `json:"points"`
	Coupons           []CouponGrant         `json:"coupons,omitempty"`
	Notifications     []NotificationPayload `json:"notifications,omitempty"`
	MemberLevel       string                `json:"memberLevel,omitempty"`
	Rules             []string              `json:"rules,omitempty"`
}

// applyToDeliveryFee marks a discount aimed at the delivery fee.
const applyToDeliveryFee = "delivery_fee"

// Summarize folds run results into Effects. Failed actions contribute
// nothing. When several rules set a member level the first (highest
// priority) wins.
func Summarize(results []RuleExecutionResult) Effects {
	var fx Effects
	for _, r := range results {
		contributed := false
		for _, a := range r.Actions {
			if !a.Success {
				continue
			}
			switch v := a.Result.(type) {
			case DiscountResult:
				if v.ApplyTo == applyToDeliveryFee {
					fx.DeliveryFeeWaived = true
				} else {
					fx.DiscountAmount += v.DiscountAmount
				}
			case PointsResult:
				fx.Points += v.Points
			case CouponGrant:
				fx.Coupons = append(fx.Coupons, v)
			case NotificationPayload:
				fx.Notifications = append(fx.Notifications, v)
			case MemberLevelChange:
				if fx.MemberLevel == "" {
					fx.MemberLevel = v.Level
				}
			default:
				continue
			}
			contributed = true
		}
		if contributed {
			fx.Rules = append(fx.Rules, r.RuleCode)
		}
	}
	return fx
}
