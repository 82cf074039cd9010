package util

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestInitViperReadsEnv(t *testing.T) {
	t.Setenv("GMB_REMOVE_THRESHOLD", "42")
	t.Setenv("GMB_REDIS_MAX_RETRIES", "3")

	v := viper.New()
	InitViper(v, "")
	require.Equal(t, 42, v.GetInt("remove-threshold"))

	sub := GetSubViper(v, "redis")
	require.Equal(t, 3, sub.GetInt("max-retries"))
}

func TestGetSubViperMissingSection(t *testing.T) {
	t.Parallel()
	v := viper.New()
	sub := GetSubViper(v, "absent")
	require.NotNil(t, sub)
	require.Empty(t, sub.GetString("anything"))
}
