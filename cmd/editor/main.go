package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	zlog.Init()

	if err := godotenv.Load(); err != nil {
		zlog.Logger.Debug().Msg("No .env file found")
	}

	rootCmd := &cobra.Command{
		Use:           "editor",
		Long:          `Apply and check image edit batches without the API server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newApplyCmd(), newValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		zlog.Logger.Error().Err(err).Msg("editor failed")
		os.Exit(1)
	}
}
