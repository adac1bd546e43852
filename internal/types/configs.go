package types

import (
	"encoding/json"
	"time"
)

// Config is a categorized, non-branching domain parameter record such as a
// payment method, a delivery method or a product option group. Settings is
// opaque to the engine.
type Config struct {
	ID          ConfigID        `json:"id"`
	Code        string          `json:"code" validate:"required,max=128"`
	Category    string          `json:"category" validate:"required,max=64"`
	Name        LocalizedText   `json:"name"`
	Description LocalizedText   `json:"description"`
	Settings    json.RawMessage `json:"settings,omitempty"`
	IsEnabled   bool            `json:"isEnabled"`
	SortOrder   int             `json:"sortOrder"`
	ValidFrom   *time.Time      `json:"validFrom,omitempty"`
	ValidTo     *time.Time      `json:"validTo,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ActiveAt reports whether the config is enabled and valid at now.
func (c *Config) ActiveAt(now time.Time) bool {
	return c.IsEnabled && withinWindow(c.ValidFrom, c.ValidTo, now)
}

// ConfigItem is one selectable entry under a Config, for example a single
// sugar level inside the sugar option group.
type ConfigItem struct {
	ID        ConfigItemID    `json:"id"`
	ConfigID  ConfigID        `json:"configId" validate:"required"`
	ParentID  ConfigItemID    `json:"parentId,omitempty"`
	Code      string          `json:"code" validate:"required,max=128"`
	Name      LocalizedText   `json:"name"`
	Icon      string          `json:"icon,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	IsEnabled bool            `json:"isEnabled"`
	IsDefault bool            `json:"isDefault"`
	SortOrder int             `json:"sortOrder"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
