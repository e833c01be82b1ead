package config

import (
	"strings"

	"github.com/spf13/viper"
)

// stringMap reads a map given as a config table, an env value "k=v,k=v",
// or a pflag StringToString value "[k=v,k=v]".
func stringMap(v *viper.Viper, key string) map[string]string {
	switch raw := v.Get(key).(type) {
	case nil:
		return map[string]string{}
	case string:
		return parseStringMap(raw)
	}
	out := make(map[string]string)
	for k, value := range v.GetStringMapString(key) {
		k, value = strings.TrimSpace(k), strings.TrimSpace(value)
		if k != "" && value != "" {
			out[k] = value
		}
	}
	return out
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	input = strings.TrimSpace(input)
	input = strings.TrimSuffix(strings.TrimPrefix(input, "["), "]")
	for _, pair := range strings.Split(input, ",") {
		k, value, ok := strings.Cut(pair, "=")
		k, value = strings.TrimSpace(k), strings.TrimSpace(value)
		if !ok || k == "" || value == "" {
			continue
		}
		out[k] = value
	}
	return out
}

// stringList reads a list given as a config array or a comma separated string,
// lower-cased with blanks removed.
func stringList(v *viper.Viper, key string) []string {
	items := v.GetStringSlice(key)
	if raw, ok := v.Get(key).(string); ok {
		items = strings.Split(raw, ",")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
