package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackdropbox/blackdropbox/internal/config"
	"github.com/blackdropbox/blackdropbox/internal/constants"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage blackdropbox configuration",
		Long: `Configuration management commands for blackdropbox.

Commands:
  init  - Interactive configuration setup
  show  - Display the effective configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.GetDefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for blackdropbox.

The configuration is saved to the config directory as config.csv. Secrets
(storage keys, client secret, proxy password) are never written to it; set
them as BLACKDROPBOX_* environment variables or in a .env file.

Use --force to overwrite an existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "BlackDropbox Configuration Setup")
			fmt.Fprintln(out, "================================")
			fmt.Fprintln(out)

			p := newPrompter(cmd.InOrStdin(), out)
			cfg := config.DefaultConfig()
			var err error

			if cfg.StorageBackend, err = p.line("Storage backend (s3, azure, memory)", cfg.StorageBackend); err != nil {
				return err
			}
			cfg.StorageBackend = strings.ToLower(cfg.StorageBackend)
			switch cfg.StorageBackend {
			case config.BackendS3:
				if cfg.S3Bucket, err = p.required("S3 bucket"); err != nil {
					return err
				}
				if cfg.S3Region, err = p.line("S3 region", cfg.S3Region); err != nil {
					return err
				}
				if cfg.S3Endpoint, err = p.line("S3-compatible endpoint (optional)", ""); err != nil {
					return err
				}
			case config.BackendAzure:
				if cfg.AzureAccount, err = p.required("Azure storage account"); err != nil {
					return err
				}
				if cfg.AzureContainer, err = p.required("Azure container"); err != nil {
					return err
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Sign-in (Cognito user pool)")
			fmt.Fprintln(out, "---------------------------")
			if cfg.CognitoRegion, err = p.line("Region", cfg.CognitoRegion); err != nil {
				return err
			}
			if cfg.CognitoUserPoolID, err = p.line("User pool ID", ""); err != nil {
				return err
			}
			if cfg.CognitoClientID, err = p.required("App client ID"); err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Optional settings (press Enter to skip)")
			fmt.Fprintln(out, "---------------------------------------")
			if cfg.APIEndpoint, err = p.line("Version API endpoint", ""); err != nil {
				return err
			}
			if cfg.DropFolder, err = p.line("Drop folder for 'watch'", ""); err != nil {
				return err
			}
			maxUploads, err := p.line("Max concurrent uploads (0 = unlimited)", strconv.Itoa(cfg.MaxConcurrentUploads))
			if err != nil {
				return err
			}
			if v, err := strconv.Atoi(maxUploads); err == nil && v >= 0 {
				cfg.MaxConcurrentUploads = v
			}
			cfg.MergeWithFlags("", "", "")

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfigCSV(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Configuration saved to: %s\n", path)
			fmt.Fprintf(out, "Set secrets with %sS3_SECRET_ACCESS_KEY, %sAZURE_ACCOUNT_KEY or %sCOGNITO_CLIENT_SECRET as needed.\n",
				constants.EnvPrefix, constants.EnvPrefix, constants.EnvPrefix)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after applying the config file, .env files,
BLACKDROPBOX_* environment variables and flags. Secrets are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			entries := cfg.Entries()
			return render(cmd.OutOrStdout(), cfg.OutputFormat, entries, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "KEY\tVALUE")
				for _, e := range entries {
					v := e.Value
					if v == "" {
						v = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\n", e.Key, v)
				}
			})
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			path := configPath()
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "(file does not exist; run 'blackdropbox config init')")
			}
		},
	}
}
