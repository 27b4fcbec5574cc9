package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teemow/calendarchat/internal/config"
	"github.com/teemow/calendarchat/internal/logging"
)

func newConfigCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration serve would run with, after loading the .env file,
the environment and any flags. Secrets are masked. Keys whose absence
disables a feature are listed at the end.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}

	flags.register(cmd)
	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	rows := [][2]string{
		{"GOOGLE_CLIENT_ID", cfg.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", logging.MaskSecret(cfg.GoogleClientSecret)},
		{"GOOGLE_REDIRECT_URI", cfg.GoogleRedirectURI},
		{"OPENAI_API_KEY", logging.MaskSecret(cfg.OpenAIAPIKey)},
		{"OPENAI_MODEL", cfg.OpenAIModel},
		{"OPENAI_BASE_URL", cfg.OpenAIBaseURL},
		{"CONNECTOR_API_KEY", logging.MaskSecret(cfg.ConnectorAPIKey)},
		{"CONNECTOR_BACKEND", cfg.ConnectorBackend},
		{"PORT", strconv.Itoa(cfg.Port)},
		{"ALLOWED_ORIGIN", cfg.AllowedOrigin},
		{"APP_BASE_URL", cfg.AppBaseURL},
		{"MCP_AUTH_TOKEN", logging.MaskSecret(cfg.MCPAuthToken)},
		{"REGISTRY_STORAGE", cfg.RegistryStorage},
		{"REDIS_URL", cfg.Redis.Addr},
		{"REDIS_PASSWORD", logging.MaskSecret(cfg.Redis.Password)},
		{"REDIS_DB", strconv.Itoa(cfg.Redis.DB)},
		{"REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix},
		{"LOG_LEVEL", cfg.LogLevel},
		{"LOG_FORMAT", cfg.LogFormat},
		{"METRICS_ENABLED", strconv.FormatBool(cfg.MetricsEnabled)},
		{"METRICS_ADDR", cfg.MetricsAddr},
		{"OAUTH_STATE_TTL", cfg.OAuthStateTTL.String()},
		{"UPSTREAM_TIMEOUT", cfg.RequestTimeout.String()},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	missing := cfg.Missing()
	if len(missing) == 0 {
		_, err := fmt.Fprintln(w, "\nAll feature keys are set.")
		return err
	}
	if _, err := fmt.Fprintln(w, "\nMissing (features disabled):"); err != nil {
		return err
	}
	for _, key := range missing {
		if _, err := fmt.Fprintf(w, "  - %s\n", key); err != nil {
			return err
		}
	}
	return nil
}
