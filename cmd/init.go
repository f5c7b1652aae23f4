package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/matchall/generate"
)

// initCmd: matchall init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file listing every rule with its default severity",
	Run: func(cmd *cobra.Command, args []string) {
		path := cfgFile
		if path == "" {
			path = generate.DefaultConfigFile
		}
		if err := generate.WriteConfig(path, generate.DefaultConfig()); err != nil {
			logger.Error("Error initializing config file", zap.Error(err))
			return
		}
		fmt.Printf("Configuration file created/updated: %s\n", path)
	},
}
