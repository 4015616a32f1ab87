package config

// Persistent state keys (Registry)
const (
	KeyAPIKey          = "api_key"
	KeyAssistantID     = "assistant_id"
	KeyModel           = "model"
	KeyPostTypes       = "post_types"
	KeyPollStrategy    = "poll_strategy"
	KeyPollInterval    = "poll_interval"
	KeyPollMaxAttempts = "poll_max_attempts"
)

// SettingKeys lists the keys the settings endpoint may write.
var SettingKeys = []string{
	KeyAPIKey,
	KeyAssistantID,
	KeyModel,
	KeyPostTypes,
	KeyPollStrategy,
	KeyPollInterval,
	KeyPollMaxAttempts,
}

// IsSettingKey reports whether key is a known settings override.
func IsSettingKey(key string) bool {
	for _, k := range SettingKeys {
		if k == key {
			return true
		}
	}
	return false
}
