package seed

import (
	"encoding/json"
	"strconv"

	"github.com/solatis/rulekeeper/internal/types"
)

// ConfigSeed is a config together with its items.
type ConfigSeed struct {
	Config types.Config
	Items  []types.ConfigItem
}

func text(en, ru, zh string) types.LocalizedText {
	return types.LocalizedText{En: en, Ru: ru, Zh: zh}
}

func cond(field, op string, value any) types.Condition {
	return types.Condition{Field: field, Operator: op, Value: value, Logic: types.LogicAnd}
}

func action(kind string, params map[string]any) types.Action {
	return types.Action{Type: kind, Params: params}
}

func settings(v map[string]any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func upgradeNotice(level string) types.Action {
	return action("sendNotification", map[string]any{
		"channel":  "push",
		"template": "member_upgrade",
		"data":     map[string]any{"level": level},
	})
}

// DefaultRules returns the stock coupon, points and membership rules.
func DefaultRules() []types.Rule {
	return []types.Rule{
		// coupon
		{
			Code:        "coupon_reduce_50_on_500",
			Name:        text("50₽ off on 500₽", "Скидка 50₽ при заказе от 500₽", "满500减50"),
			Description: text("Get 50₽ off when you spend 500₽ or more", "Получите скидку 50₽ при заказе от 500₽", "订单满500卢布减50卢布"),
			RuleType:    "coupon",
			Conditions:  []types.Condition{cond("orderAmount", ">=", 500)},
			Actions:     []types.Action{action("discount", map[string]any{"discountType": "fixed", "value": 50})},
			Priority:    10,
			IsEnabled:   true,
		},
		{
			Code:        "coupon_10percent_off",
			Name:        text("10% Off", "Скидка 10%", "9折优惠"),
			Description: text("Get 10% off your entire order", "Получите скидку 10% на весь заказ", "全场9折优惠"),
			RuleType:    "coupon",
			Conditions:  []types.Condition{cond("orderAmount", ">=", 300)},
			Actions:     []types.Action{action("discount", map[string]any{"discountType": "percent", "value": 10, "maxAmount": 100})},
			Priority:    5,
			IsEnabled:   true,
		},
		{
			Code:        "coupon_first_order_discount",
			Name:        text("New Customer Discount", "Скидка для новых клиентов", "新用户首单优惠"),
			Description: text("100₽ off your first order", "Скидка 100₽ на первый заказ", "新用户首单立减100卢布"),
			RuleType:    "coupon",
			Conditions: []types.Condition{
				cond("user.orderCount", "=", 0),
				cond("orderAmount", ">=", 200),
			},
			Actions:    []types.Action{action("discount", map[string]any{"discountType": "fixed", "value": 100})},
			Priority:   20,
			MutexGroup: "first_order",
			IsEnabled:  true,
		},
		{
			Code:        "coupon_vip_discount",
			Name:        text("VIP Discount", "Скидка для VIP", "会员专享折扣"),
			Description: text("Extra 5% off for VIP members", "Дополнительная скидка 5% для VIP членов", "VIP会员额外享受95折"),
			RuleType:    "coupon",
			Conditions:  []types.Condition{cond("user.memberLevel", "in", []any{"gold", "platinum"})},
			Actions:     []types.Action{action("discount", map[string]any{"discountType": "percent", "value": 5, "maxAmount": 50})},
			Priority:    15,
			IsEnabled:   true,
		},
		{
			Code:        "coupon_free_delivery",
			Name:        text("Free Delivery", "Бесплатная доставка", "免配送费"),
			Description: text("Free delivery on orders over 800₽", "Бесплатная доставка при заказе от 800₽", "订单满800卢布免配送费"),
			RuleType:    "coupon",
			Conditions: []types.Condition{
				cond("orderAmount", ">=", 800),
				cond("deliveryMethod", "=", "delivery"),
			},
			Actions:   []types.Action{action("discount", map[string]any{"discountType": "fixed", "value": 0, "applyTo": "delivery_fee"})},
			Priority:  8,
			IsEnabled: true,
		},

		// points
		{
			Code:        "points_earn_on_order",
			Name:        text("Points on Purchase", "Баллы за покупки", "消费积分"),
			Description: text("Earn 1 point for every ruble spent", "Получайте 1 балл за каждый потраченный рубль", "消费1卢布获得1积分"),
			RuleType:    "points",
			Conditions: []types.Condition{
				cond("eventType", "=", "order_completed"),
				cond("orderAmount", ">", 0),
			},
			Actions:   []types.Action{action("givePoints", map[string]any{"formula": "orderAmount * 1", "multiplier": 1})},
			Priority:  10,
			IsEnabled: true,
		},
		{
			Code:        "points_multiplier_silver",
			Name:        text("Silver Member Bonus", "Бонус для серебряных членов", "白银会员积分加速"),
			Description: text("Silver members earn 1.2x points", "Серебряные члены получают 1.2x баллов", "白银会员获得1.2倍积分"),
			RuleType:    "points",
			Conditions: []types.Condition{
				cond("eventType", "=", "order_completed"),
				cond("user.memberLevel", "=", "silver"),
			},
			Actions:    []types.Action{action("givePoints", map[string]any{"formula": "orderAmount * 1", "multiplier": 1.2})},
			Priority:   15,
			MutexGroup: "member_points_bonus",
			IsEnabled:  true,
		},
		{
			Code:        "points_multiplier_gold",
			Name:        text("Gold Member Bonus", "Бонус для золотых членов", "黄金会员积分加速"),
			Description: text("Gold members earn 1.5x points", "Золотые члены получают 1.5x баллов", "黄金会员获得1.5倍积分"),
			RuleType:    "points",
			Conditions: []types.Condition{
				cond("eventType", "=", "order_completed"),
				cond("user.memberLevel", "=", "gold"),
			},
			Actions:    []types.Action{action("givePoints", map[string]any{"formula": "orderAmount * 1", "multiplier": 1.5})},
			Priority:   20,
			MutexGroup: "member_points_bonus",
			IsEnabled:  true,
		},
		{
			Code:       "points_daily_checkin",
			Name:       text("Daily Check-in", "Ежедневная регистрация", "每日签到"),
			RuleType:   "points",
			Conditions: []types.Condition{cond("eventType", "=", "daily_checkin")},
			Actions:    []types.Action{action("givePoints", map[string]any{"formula": "10"})},
			Priority:   5,
			IsEnabled:  true,
		},
		{
			Code:     "points_review",
			Name:     text("Points for Reviews", "Баллы за отзывы", "评价积分"),
			RuleType: "points",
			Conditions: []types.Condition{
				cond("eventType", "=", "review_submitted"),
				cond("review.hasPhoto", "=", true),
			},
			Actions:   []types.Action{action("givePoints", map[string]any{"formula": "20"})},
			Priority:  5,
			IsEnabled: true,
		},
		{
			Code:     "points_invite_friend",
			Name:     text("Points for Inviting Friends", "Баллы за приглашение друзей", "邀请好友积分"),
			RuleType: "points",
			Conditions: []types.Condition{
				cond("eventType", "=", "friend_invited"),
				cond("invitee.firstOrderCompleted", "=", true),
			},
			Actions:   []types.Action{action("givePoints", map[string]any{"formula": "100"})},
			Priority:  5,
			IsEnabled: true,
		},
		{
			Code:       "points_birthday",
			Name:       text("Birthday Points", "Баллы на день рождения", "生日积分"),
			RuleType:   "points",
			Conditions: []types.Condition{cond("eventType", "=", "birthday")},
			Actions: []types.Action{
				action("givePoints", map[string]any{"formula": "200"}),
				action("giveCoupon", map[string]any{"couponCode": "birthday_gift", "quantity": 1}),
			},
			Priority:  5,
			IsEnabled: true,
		},

		// member
		memberUpgrade("silver", "bronze", 1000, 10, 5000, 100, nil,
			text("Upgrade to Silver", "Повышение до серебряного", "升级到白银会员")),
		memberUpgrade("gold", "silver", 5000, 50, 25000, 500,
			map[string]any{"couponCode": "gold_welcome", "quantity": 1},
			text("Upgrade to Gold", "Повышение до золотого", "升级到黄金会员")),
		memberUpgrade("platinum", "gold", 15000, 150, 75000, 2000,
			map[string]any{"couponCode": "platinum_welcome", "quantity": 3},
			text("Upgrade to Platinum", "Повышение до платинового", "升级到铂金会员")),
	}
}

func memberUpgrade(level, from string, points, orders, spent, bonus int, coupon map[string]any, name types.LocalizedText) types.Rule {
	actions := []types.Action{
		action("upgradeMember", map[string]any{"newLevel": level}),
		action("givePoints", map[string]any{"formula": strconv.Itoa(bonus), "reason": "Бонус за повышение уровня"}),
	}
	if coupon != nil {
		actions = append(actions, action("giveCoupon", coupon))
	}
	actions = append(actions, upgradeNotice(level))

	return types.Rule{
		Code:     "member_upgrade_to_" + level,
		Name:     name,
		RuleType: "member",
		Conditions: []types.Condition{
			cond("user.totalPoints", ">=", points),
			cond("user.totalOrders", ">=", orders),
			cond("user.totalSpent", ">=", spent),
			cond("user.memberLevel", "=", from),
		},
		Actions:   actions,
		Priority:  10,
		IsEnabled: true,
	}
}

func optionItem(code string, name types.LocalizedText, order int, isDefault bool, cfg map[string]any) types.ConfigItem {
	return types.ConfigItem{
		Code:      code,
		Name:      name,
		Settings:  settings(cfg),
		IsEnabled: true,
		IsDefault: isDefault,
		SortOrder: order,
	}
}

func optionGroup(code string, name types.LocalizedText, order int, icon, selection string, required bool, items ...types.ConfigItem) ConfigSeed {
	cfg := map[string]any{
		"type":          "product_option_group",
		"icon":          icon,
		"selectionType": selection,
		"isRequired":    required,
	}
	if selection == "multiple" {
		cfg["maxSelections"] = 3
	}
	return ConfigSeed{
		Config: types.Config{
			Code:      code,
			Category:  "product_option",
			Name:      name,
			Settings:  settings(cfg),
			IsEnabled: true,
			SortOrder: order,
		},
		Items: items,
	}
}

func simpleConfig(category, code string, name types.LocalizedText, order int, enabled bool, cfg map[string]any) ConfigSeed {
	return ConfigSeed{Config: types.Config{
		Code:      code,
		Category:  category,
		Name:      name,
		Settings:  settings(cfg),
		IsEnabled: enabled,
		SortOrder: order,
	}}
}

// DefaultConfigs returns product option groups with their items, payment
// and delivery methods, and member levels.
func DefaultConfigs() []ConfigSeed {
	free := map[string]any{"priceAdjustment": 0}
	return []ConfigSeed{
		optionGroup("product_option_sugar", text("Sugar Level", "Уровень сахара", "糖度"), 1, "🍬", "single", true,
			optionItem("no_sugar", text("No Sugar", "Без сахара", "无糖"), 1, false, free),
			optionItem("half_sugar", text("Half Sugar", "Половина сахара", "半糖"), 2, true, free),
			optionItem("normal_sugar", text("Normal Sugar", "Обычный сахар", "正常糖"), 3, false, free),
		),
		optionGroup("product_option_ice", text("Ice Level", "Уровень льда", "冰度"), 2, "🧊", "single", true,
			optionItem("no_ice", text("No Ice", "Без льда", "去冰"), 1, false, free),
			optionItem("normal_ice", text("Normal Ice", "Обычный лёд", "正常冰"), 2, true, free),
			optionItem("extra_ice", text("Extra Ice", "Больше льда", "多冰"), 3, false, free),
		),
		optionGroup("product_option_size", text("Size", "Размер", "容量"), 3, "🥤", "single", true,
			optionItem("medium", text("Medium (500ml)", "Средний (500мл)", "中杯 (500ml)"), 1, true, map[string]any{"priceAdjustment": 0, "volume": 500}),
			optionItem("large", text("Large (700ml)", "Большой (700мл)", "大杯 (700ml)"), 2, false, map[string]any{"priceAdjustment": 50, "volume": 700}),
		),
		optionGroup("product_option_toppings", text("Toppings", "Добавки", "小料"), 4, "🧋", "multiple", false,
			optionItem("pearl", text("Tapioca Pearls", "Жемчужины тапиоки", "珍珠"), 1, false, map[string]any{"priceAdjustment": 30}),
			optionItem("coconut_jelly", text("Coconut Jelly", "Кокосовое желе", "椰果"), 2, false, map[string]any{"priceAdjustment": 30}),
			optionItem("pudding", text("Pudding", "Пудинг", "布丁"), 3, false, map[string]any{"priceAdjustment": 40}),
		),

		simpleConfig("payment_method", "payment_yookassa", text("Bank Card", "Банковская карта", "银行卡"), 1, true,
			map[string]any{"provider": "yookassa", "icon": "💳"}),
		simpleConfig("payment_method", "payment_cash_on_delivery", text("Cash on Delivery", "Оплата при получении", "货到付款"), 2, true,
			map[string]any{"provider": "cash", "icon": "💵", "maxAmount": 5000}),
		simpleConfig("payment_method", "payment_points", text("Points", "Баллы", "积分支付"), 3, true,
			map[string]any{"provider": "points", "icon": "⭐", "exchangeRate": 1}),
		simpleConfig("payment_method", "payment_sbp", text("SBP", "СБП", "快速支付"), 4, true,
			map[string]any{"provider": "sbp", "icon": "📱"}),
		simpleConfig("payment_method", "payment_installment", text("Installment", "Рассрочка", "分期付款"), 5, false,
			map[string]any{"provider": "tinkoff", "icon": "📅", "minAmount": 3000}),

		simpleConfig("delivery_method", "delivery_method_delivery", text("Delivery", "Доставка", "外卖配送"), 1, true,
			map[string]any{"fee": 150, "freeThreshold": 1000, "estimatedMinutes": 45}),
		simpleConfig("delivery_method", "delivery_method_pickup", text("Pickup", "Самовывоз", "到店自取"), 2, true,
			map[string]any{"fee": 0, "estimatedMinutes": 15}),
		simpleConfig("delivery_method", "delivery_method_scheduled", text("Scheduled Delivery", "Доставка ко времени", "预约配送"), 3, false,
			map[string]any{"fee": 200, "advanceHours": 2}),

		memberLevel("bronze", text("Bronze", "Бронзовый", "青铜会员"), 1, "#CD7F32", 0, 0, 0, 1.0),
		memberLevel("silver", text("Silver", "Серебряный", "白银会员"), 2, "#C0C0C0", 1000, 10, 5000, 1.2),
		memberLevel("gold", text("Gold", "Золотой", "黄金会员"), 3, "#FFD700", 5000, 50, 25000, 1.5),
		memberLevel("platinum", text("Platinum", "Платиновый", "铂金会员"), 4, "#E5E4E2", 15000, 150, 75000, 2.0),
	}
}

func memberLevel(level string, name types.LocalizedText, order int, color string, points, orders, amount int, multiplier float64) ConfigSeed {
	return simpleConfig("member_level", "member_level_"+level, name, order, true, map[string]any{
		"level": order,
		"color": color,
		"upgradeConditions": map[string]any{
			"type":           "auto",
			"requiredPoints": points,
			"requiredOrders": orders,
			"requiredAmount": amount,
		},
		"benefits": map[string]any{
			"pointsMultiplier": multiplier,
		},
	})
}
