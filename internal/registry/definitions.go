// Package registry loads provider and model definitions from YAML and wires
// them to provider.Client factories, without a package-level singleton: a
// composition root constructs exactly the Registry it needs and holds onto it.
package registry

// ProviderDefinition represents a provider entry from the configuration.
type ProviderDefinition struct {
	// Name is the unique identifier for the provider (e.g. "openai").
	Name string `yaml:"name" json:"name"`

	// BaseURL overrides the provider's default API endpoint. Empty uses
	// the vendor default.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// ModelDefinition represents a model entry from the configuration.
type ModelDefinition struct {
	// Name is the user-facing alias for the model (e.g. "gpt-4.1").
	Name string `yaml:"name" json:"name"`

	// Provider links to a ProviderDefinition by name.
	Provider string `yaml:"provider" json:"provider"`

	// APIModelID is the identifier sent in API calls.
	APIModelID string `yaml:"api_model_id" json:"api_model_id"`

	// ContextWindow is the maximum combined input+output tokens.
	ContextWindow int32 `yaml:"context_window" json:"context_window"`

	// MaxOutputTokens is the maximum tokens allowed for generation.
	MaxOutputTokens int32 `yaml:"max_output_tokens" json:"max_output_tokens"`

	// Parameters defines the supported generation parameters for this model.
	Parameters map[string]ParameterDefinition `yaml:"parameters" json:"parameters"`
}

// ParameterDefinition describes one generation parameter's type, default,
// and bounds.
type ParameterDefinition struct {
	Type       string      `yaml:"type" json:"type"`
	Default    interface{} `yaml:"default" json:"default"`
	Min        interface{} `yaml:"min,omitempty" json:"min,omitempty"`
	Max        interface{} `yaml:"max,omitempty" json:"max,omitempty"`
	EnumValues []string    `yaml:"enum_values,omitempty" json:"enum_values,omitempty"`
}

// ModelsConfig is the full configuration document loaded from YAML.
type ModelsConfig struct {
	// APIKeySources maps provider names to the environment variable
	// holding that provider's credential (e.g. {"openai": "OPENAI_API_KEY"}).
	APIKeySources map[string]string `yaml:"api_key_sources" json:"api_key_sources"`

	Providers []ProviderDefinition `yaml:"providers" json:"providers"`
	Models    []ModelDefinition    `yaml:"models" json:"models"`
}

// Warning describes a non-fatal condition discovered while loading the
// registry or registering providers — e.g. a provider whose credential
// environment variable is unset. A composition root decides whether and how
// to surface these to an operator; the registry itself never treats them as
// fatal.
type Warning struct {
	Provider string
	Message  string
}
