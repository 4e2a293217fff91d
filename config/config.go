// Package config embeds the yaml configuration shipped with the binary.
package config

import (
	"embed"
)

//go:embed *.yml
var FS embed.FS
