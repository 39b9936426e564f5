package config

import (
	"os"
	"strings"
)

const defaultAPIURL = "http://localhost:3333"

// APIURL returns the base URL for the irrigation API without a trailing slash.
// It can be overridden with the IRRIGATION_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("IRRIGATION_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}
