package main

import (
	"log"

	"github.com/spf13/cobra"

	"wordchain.dev/internal/config"
)

func main() {
	log.SetFlags(0)
	cobra.CheckErr(config.NewCommand().Execute())
}
