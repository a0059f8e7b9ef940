package models

import "time"

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString   ConfigurationType = "STRING"
	ConfigurationTypeDuration ConfigurationType = "DURATION"
)

// Runtime policy keys stored in the configurations table.
const (
	ConfigKeySLAWarningAfter         = "sla_warning_after"
	ConfigKeySLABreachAfter          = "sla_breach_after"
	ConfigKeyPayoutEligibilityWindow = "payout_eligibility_window"
	ConfigKeyPayoutEligibilityPolicy = "payout_eligibility_policy"
)

// Configuration represents a persisted configuration entry.
type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	Version     int64             `db:"version" json:"version"`
	UpdatedBy   *string           `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// Policy is the versioned runtime policy consumed by the workflow.
type Policy struct {
	SLAWarningAfter         time.Duration `json:"sla_warning_after"`
	SLABreachAfter          time.Duration `json:"sla_breach_after"`
	PayoutEligibilityWindow time.Duration `json:"payout_eligibility_window"`
	PayoutEligibilityPolicy string        `json:"payout_eligibility_policy"`
	Version                 int64         `json:"version"`
	LoadedAt                time.Time     `json:"loaded_at"`
}
