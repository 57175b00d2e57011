package config

import "os"

// EnvLookup resolves one environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup reads the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// DefaultEnvAliases maps canonical keys to alternative names accepted for
// compatibility with older deployments.
func DefaultEnvAliases() map[string][]string {
	return map[string][]string{
		"AMBIENT_API_KEY": {"GOVAI_AMBIENT_API_KEY"},
		"NOUS_API_KEY":    {"GOVAI_NOUS_API_KEY"},
		"TALLY_API_KEY":   {"GOVAI_TALLY_API_KEY"},
		"PORT":            {"GOVAI_PORT"},
		"PAGE_PORT":       {"GOVAI_PAGE_PORT"},
		"LOG_LEVEL":       {"GOVAI_LOG_LEVEL"},
	}
}

// AliasEnvLookup falls back to aliases when the canonical key is unset.
func AliasEnvLookup(base EnvLookup, aliases map[string][]string) EnvLookup {
	if base == nil {
		base = DefaultEnvLookup
	}
	return func(key string) (string, bool) {
		if value, ok := base(key); ok && value != "" {
			return value, true
		}
		for _, alias := range aliases[key] {
			if value, ok := base(alias); ok && value != "" {
				return value, true
			}
		}
		return "", false
	}
}
