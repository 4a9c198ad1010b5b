// Command connectctl is a small CLI for operating the API: logging in,
// running bulk imports from a file and fetching import templates.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL string
	token  string
)

func main() {
	root := &cobra.Command{
		Use:           "connectctl",
		Short:         "Admin CLI for the ConnectHub API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&apiURL, "api-url", envOr("CONNECTHUB_API_URL", "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("CONNECTHUB_TOKEN"), "Bearer token (or CONNECTHUB_TOKEN)")

	root.AddCommand(newLoginCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newTemplateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
