package main

import (
	"strings"

	env "github.com/xyproto/env/v2"

	"github.com/spf13/viper"
)

// libraryPaths merges -L flags (highest priority), then .h68kldrc.yaml's
// "library-paths" list, then the LIB environment variable (read via
// xyproto/env/v2, the same small env helper xyproto/flapc keeps as a
// direct dependency), per spec.md §6: "LIB ... consulted after -L
// paths."
func libraryPaths() []string {
	paths := append([]string{}, libPathsFlag...)

	if configured := viper.GetStringSlice("library-paths"); len(configured) > 0 {
		paths = append(paths, configured...)
	}

	if lib := env.Str("LIB", ""); lib != "" {
		for _, p := range strings.Split(lib, ":") {
			if p != "" {
				paths = append(paths, p)
			}
		}
	}

	return paths
}
