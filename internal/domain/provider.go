package domain

type ProviderID string

// ProviderConfig is passed by value into every operation and never mutated.
type ProviderConfig struct {
	Provider ProviderID            `json:"provider"`
	Model    string                `json:"model,omitempty"`
	APIKeys  map[ProviderID]string `json:"-"`
	BaseURL  string                `json:"base_url,omitempty"`
}

// Key returns the user-supplied key for the configured provider.
func (c ProviderConfig) Key() string {
	if c.APIKeys == nil {
		return ""
	}
	return c.APIKeys[c.Provider]
}
