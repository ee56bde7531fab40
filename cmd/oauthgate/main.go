package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var (
		configPath = envOr("CONFIG_PATH", "config.yaml")
		envFile    = envOr("ENV_FILE", ".env")
	)

	root := &cobra.Command{
		Use:           "oauthgate",
		Short:         "Login social OAuth 2.0 (authorization code) para GitHub, Google y Microsoft",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "ruta a config.yaml, opcional (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "ruta a .env, se carga si existe (env ENV_FILE)")

	root.AddCommand(newServeCmd(&configPath, &envFile))
	root.AddCommand(newStateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
