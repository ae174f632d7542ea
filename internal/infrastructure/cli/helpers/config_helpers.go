package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/vrelay/internal/domain"
)

// LookupConfigValue resolves a dotted key path such as
// "preferences.default_model" or "models.0.name" against cfg and returns the
// value rendered as YAML.
func LookupConfigValue(cfg domain.Config, key string) (string, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	value, ok := TraverseNestedMap(generic, strings.Split(key, "."))
	if !ok {
		return "", fmt.Errorf("key %s not found", key)
	}
	out, err := yaml.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// TraverseNestedMap retrieves a value from nested maps and lists using a key
// path. List elements are addressed by index.
func TraverseNestedMap(data interface{}, keyPath []string) (interface{}, bool) {
	if len(keyPath) == 0 {
		return data, true
	}

	switch node := data.(type) {
	case map[string]interface{}:
		next, exists := node[keyPath[0]]
		if !exists {
			return nil, false
		}
		return TraverseNestedMap(next, keyPath[1:])
	case []interface{}:
		idx, err := strconv.Atoi(keyPath[0])
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, false
		}
		return TraverseNestedMap(node[idx], keyPath[1:])
	default:
		return nil, false
	}
}
