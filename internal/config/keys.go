package config

import (
	"fmt"
	"sort"
	"strings"
)

// SecretKeys are the dotted settings that may live in the OS keyring and
// are masked whenever they are printed.
var SecretKeys = []string{"llm.api_key", "telegram.token", "github.token"}

// IsSecretKey reports whether key names a credential.
func IsSecretKey(key string) bool {
	for _, k := range SecretKeys {
		if k == key {
			return true
		}
	}
	return false
}

// secretFields maps each secret key to the field that holds it.
func secretFields(cfg *Config) map[string]*string {
	return map[string]*string{
		"llm.api_key":    &cfg.LLM.APIKey,
		"telegram.token": &cfg.Telegram.Token,
		"github.token":   &cfg.GitHub.Token,
	}
}

// Mask hides all but the last four characters of a credential.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}

// Flatten turns the nested JSON form of the config into dotted keys, so
// {"llm": {"model": "x"}} becomes {"llm.model": "x"}. Empty objects
// produce no keys.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten rebuilds the nested form. A key that needs a section where a
// plain value already sits, such as "llm.model.name" next to "llm.model",
// is an error.
func Unflatten(flat map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	// Shorter keys first so a section conflict is reported on the longer key.
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) < len(keys[j]) })

	out := make(map[string]any)
	for _, key := range keys {
		parts := strings.Split(key, ".")
		section := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := section[part]
			if !ok {
				child := make(map[string]any)
				section[part] = child
				section = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("config key %s: %s is not a section", key, part)
			}
			section = child
		}
		last := parts[len(parts)-1]
		if _, isSection := section[last].(map[string]any); isSection {
			return nil, fmt.Errorf("config key %s is a section", key)
		}
		section[last] = flat[key]
	}
	return out, nil
}

// MaskSecrets returns a copy of flat with every credential masked.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		if s, ok := v.(string); ok && IsSecretKey(k) {
			v = Mask(s)
		}
		out[k] = v
	}
	return out
}
