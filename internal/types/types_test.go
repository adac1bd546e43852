package types

import (
	"testing"
	"time"
)

func TestRule_ActiveAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := now.Add(-time.Minute)
	after := now.Add(time.Minute)

	tests := []struct {
		name    string
		enabled bool
		from    *time.Time
		to      *time.Time
		want    bool
	}{
		{"open window", true, nil, nil, true},
		{"disabled", false, nil, nil, false},
		{"started", true, &before, nil, true},
		{"not yet started", true, &after, nil, false},
		{"expired", true, nil, &before, false},
		{"inside", true, &before, &after, true},
		{"inclusive bounds", true, &now, &now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Rule{IsEnabled: tt.enabled, ValidFrom: tt.from, ValidTo: tt.to}
			if got := r.ActiveAt(now); got != tt.want {
				t.Errorf("Rule.ActiveAt() = %v, want %v", got, tt.want)
			}
			c := Config{IsEnabled: tt.enabled, ValidFrom: tt.from, ValidTo: tt.to}
			if got := c.ActiveAt(now); got != tt.want {
				t.Errorf("Config.ActiveAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeContext(t *testing.T) {
	ctx, err := DecodeContext([]byte(`{"orderAmount": 600, "user": {"orderCount": 0}}`))
	if err != nil {
		t.Fatalf("DecodeContext() error = %v, want nil", err)
	}
	if ctx["orderAmount"] != float64(600) {
		t.Errorf("orderAmount = %v, want 600", ctx["orderAmount"])
	}

	ctx, err = DecodeContext([]byte(`null`))
	if err != nil || ctx == nil || len(ctx) != 0 {
		t.Errorf("DecodeContext(null) = %v, %v; want empty context", ctx, err)
	}

	if _, err := DecodeContext([]byte(`[1, 2]`)); err == nil {
		t.Error("DecodeContext(array) error = nil, want error")
	}
}

func TestLocalizedText_String(t *testing.T) {
	tests := []struct {
		in   LocalizedText
		want string
	}{
		{LocalizedText{Ru: "Скидка", En: "Discount", Zh: "折扣"}, "Discount"},
		{LocalizedText{Ru: "Скидка", Zh: "折扣"}, "Скидка"},
		{LocalizedText{Zh: "折扣"}, "折扣"},
		{LocalizedText{}, ""},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestIDs(t *testing.T) {
	id := NewRuleID()
	if _, err := ParseRuleID(string(id)); err != nil {
		t.Errorf("ParseRuleID(%q) error = %v, want nil", id, err)
	}
	if _, err := ParseRuleID("not-a-uuid"); err == nil {
		t.Error("ParseRuleID(not-a-uuid) error = nil, want error")
	}
	if _, err := ParseConfigID(string(NewConfigID())); err != nil {
		t.Errorf("ParseConfigID() error = %v, want nil", err)
	}

	before := time.Now().Add(-time.Second)
	ts := LogEntryTime(NewLogEntryID())
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("LogEntryTime() = %v, want close to now", ts)
	}
	if !LogEntryTime("garbage").IsZero() {
		t.Error("LogEntryTime(garbage) is not zero")
	}
}
