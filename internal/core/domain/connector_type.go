package domain

// ConnectorType describes a supported connector to callers such as the CLI.
type ConnectorType struct {
	// SourceType is the registry key.
	SourceType SourceType
	// Name is the human-readable display name.
	Name string
	// Description provides a brief explanation of the connector.
	Description string
	// CredentialKeys lists the credential fields, secret ones marked.
	CredentialKeys []ConfigKey
	// ConfigKeys lists the optional non-secret options.
	ConfigKeys []ConfigKey
}

// RequiredCredentialKeys returns the keys that IsConfigured checks for.
func (c ConnectorType) RequiredCredentialKeys() []string {
	var keys []string
	for _, k := range c.CredentialKeys {
		if k.Required {
			keys = append(keys, k.Key)
		}
	}
	return keys
}

// ConfigKey describes a configuration or credential field for a connector.
type ConfigKey struct {
	// Key is the configuration key name.
	Key string
	// Label is the human-readable label for prompts.
	Label string
	// Description explains what this field is for.
	Description string
	// Default is the default value for this field.
	Default string
	// Required indicates whether this field must be provided.
	Required bool
	// Secret indicates whether this field should be masked on input.
	Secret bool
}
