package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"
)

// configPathEnv names the config file when --config is not given
const configPathEnv = "FHIR_GATEWAY_CONFIG"

// ResolveConfigPath returns the config file path with the following priority:
// 1. --config flag
// 2. FHIR_GATEWAY_CONFIG environment variable
// 3. none (defaults and environment only)
func ResolveConfigPath(flagValue string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	return strings.TrimSpace(os.Getenv(configPathEnv))
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
