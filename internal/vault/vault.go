package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "llmgateway"

// Key reference prefixes accepted in a provider's api_key column.
const (
	prefixKeyring = "keyring://"
	prefixEnv     = "env:"
	prefixFile    = "file://"
)

// Vault resolves provider API keys from the OS keychain, environment
// variables, or key files, so raw secrets need not live in the database.
type Vault struct{}

// New creates a new Vault instance.
func New() *Vault {
	return &Vault{}
}

// EnvVar returns the fallback environment variable consulted for name,
// LLMGATEWAY_KEY_<NAME> with every non-alphanumeric rune replaced by "_".
func EnvVar(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return "LLMGATEWAY_KEY_" + mapped
}

// Set stores an API key for the named provider in the OS keychain.
func (v *Vault) Set(name, key string) error {
	if name == "" {
		return fmt.Errorf("vault: provider name is required")
	}
	return keyring.Set(serviceName, name, key)
}

// Get retrieves the API key for the named provider. The OS keychain is
// checked first, then the LLMGATEWAY_KEY_<NAME> environment variable.
func (v *Vault) Get(name string) (string, error) {
	secret, err := keyring.Get(serviceName, name)
	if err == nil && secret != "" {
		return secret, nil
	}

	envKey := EnvVar(name)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}

	return "", fmt.Errorf("no key found for provider %q: not in keychain and %s not set", name, envKey)
}

// Delete removes the API key for the named provider from the OS keychain.
func (v *Vault) Delete(name string) error {
	return keyring.Delete(serviceName, name)
}

// List returns the subset of names that currently have a key available in
// the keychain or environment.
func (v *Vault) List(names []string) []string {
	var found []string
	for _, name := range names {
		if _, err := v.Get(name); err == nil {
			found = append(found, name)
		}
	}
	return found
}

// IsKeyRef reports whether value is a key reference rather than a raw key.
func IsKeyRef(value string) bool {
	return strings.HasPrefix(value, prefixKeyring) ||
		strings.HasPrefix(value, prefixEnv) ||
		strings.HasPrefix(value, prefixFile)
}

// Resolve returns the secret for a provider's stored api_key value. Raw
// keys are returned unchanged; key references are dereferenced.
func (v *Vault) Resolve(value string) (string, error) {
	if !IsKeyRef(value) {
		return value, nil
	}
	return v.ResolveKeyRef(value)
}

// ResolveKeyRef parses a key reference and retrieves the corresponding API key.
// Supported formats:
//   - "keyring://llmgateway/<provider>"
//   - "env:VARIABLE_NAME"
//   - "file:///path/to/key"
func (v *Vault) ResolveKeyRef(keyRef string) (string, error) {
	switch {
	case strings.HasPrefix(keyRef, prefixKeyring):
		path := strings.TrimPrefix(keyRef, prefixKeyring)
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://%s/<provider>\")", keyRef, serviceName)
		}
		return v.Get(parts[1])

	case strings.HasPrefix(keyRef, prefixEnv):
		envVar := strings.TrimPrefix(keyRef, prefixEnv)
		if val := os.Getenv(envVar); val != "" {
			return val, nil
		}
		return "", fmt.Errorf("environment variable %q is not set", envVar)

	case strings.HasPrefix(keyRef, prefixFile):
		filePath := strings.TrimPrefix(keyRef, prefixFile)
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading key file %q: %w", filePath, err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("key file %q is empty", filePath)
		}
		return key, nil
	}

	return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://%s/<provider>\", \"env:VARIABLE_NAME\", or \"file:///path/to/key\")", keyRef, serviceName)
}
