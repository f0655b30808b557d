// Package config provides Viper helpers for provider credentials and
// connection settings. Every setting is reachable three ways: flag,
// config file key, or environment variable.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables the
// original deployments already use.
var envBindings = map[string]string{
	"metasking-server":   "METASKING_SERVER",
	"jira-server":        "ATLASSIAN_JIRA_SERVER",
	"jira-username":      "ATLASSIAN_JIRA_USERNAME",
	"jira-token":         "ATLASSIAN_JIRA_TOKEN",
	"toggl-token":        "TOGGL_TOKEN",
	"toggl-workspace-id": "TOGGL_WORKSPACE_ID",
	"sqlite-path":        "SYNC_SQLITE_PATH",
}

// BindEnv registers the environment variable aliases with Viper.
func BindEnv() {
	for key, env := range envBindings {
		// BindEnv only errors on an empty key
		_ = viper.BindEnv(key, env)
	}
}

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	viperValue := viper.GetString(key)
	if viperValue != "" {
		return viperValue
	}
	if env, ok := envBindings[key]; ok {
		return os.Getenv(env)
	}
	return ""
}
