package s3conform

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var rawVersion string

// Version is the released version of the runner.
var Version = strings.TrimSpace(rawVersion)
