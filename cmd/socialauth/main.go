package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	// Cargar .env si existe; en producción las vars vienen del entorno.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "socialauth",
		Short: "Servicio de autenticación social (OpenID / OAuth1 / OAuth2)",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("CONFIG_PATH", "configs/config.example.yaml"), "Path al config YAML (env CONFIG_PATH)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())

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
