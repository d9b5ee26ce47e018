package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

const (
	appName = "pinevolume"
	version = "v1.0.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("pinevolume failed")
		os.Exit(1)
	}
}
