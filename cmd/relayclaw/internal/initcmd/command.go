package initcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal"
	"github.com/tinyland-inc/relayclaw/pkg/config"
	"github.com/tinyland-inc/relayclaw/pkg/secret"
)

func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config with a generated callback secret",
		Args:  cobra.NoArgs,
		Example: `  relayclaw init
  relayclaw init --force`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return initCmd(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")

	return cmd
}

func initCmd(force bool) error {
	path := internal.GetConfigPath()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	generated, err := secret.Generate(32)
	if err != nil {
		return fmt.Errorf("generating callback secret: %w", err)
	}
	cfg.Callback.Secret = generated

	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("✓ Config written to %s\n", path)
	fmt.Println("Edit executor.base_url and enable at least one channel, then run: relayclaw gateway")
	return nil
}
