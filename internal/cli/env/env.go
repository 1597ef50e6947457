// Package env reads typed values from the process environment. Unset and
// blank variables are both treated as absent.
package env

import (
	"os"
	"strconv"
	"strings"
)

func LookupEnv(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func LookupEnvInt(name string) (int, bool) {
	raw, ok := LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

func LookupEnvBool(name string) (bool, bool) {
	raw, ok := LookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return b, true
}
