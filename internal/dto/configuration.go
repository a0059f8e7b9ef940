package dto

// ConfigurationItem represents a policy entry exposed via API.
type ConfigurationItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Version     int64  `json:"version"`
}

// UpdateConfigurationRequest describes the payload for changing one policy key.
type UpdateConfigurationRequest struct {
	Value string `json:"value" validate:"required,max=64"`
}
