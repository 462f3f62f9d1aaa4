// Package config loads the optional stager.yaml file.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config document.
// A variable that is unset or empty takes its fallback, or expands to ""
// when it has none, so the built-in default for that key applies.
func ExpandEnv(doc string) string {
	return envRef.ReplaceAllStringFunc(doc, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return m[2]
	})
}
