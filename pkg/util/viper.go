package util

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the inspected environment variables.
const EnvPrefix = "GMB" // Gossip MemBer

// GetSubViper returns the section key of v, or an empty viper if there is
// none, with environment handling set up for the section.
func GetSubViper(v *viper.Viper, key string) *viper.Viper {
	n := v.Sub(key)
	if n == nil {
		n = viper.New()
	}
	InitViper(n, key)
	return n
}

// InitViper sets up env var handling for a viper. This must be run on every created sub viper as these settings
// are not persisted to nested viper instances.
//
// A parameter such as remove-threshold is read from GMB_REMOVE_THRESHOLD, or from
// GMB_<SECTION>_REMOVE_THRESHOLD for a section.
func InitViper(v *viper.Viper, subViperName string) {
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if subViperName != "" {
		v.SetEnvPrefix(EnvPrefix + "_" + strings.ToUpper(subViperName))
	} else {
		v.SetEnvPrefix(EnvPrefix)
	}
	v.SetTypeByDefaultValue(true)
	v.AutomaticEnv()
}
