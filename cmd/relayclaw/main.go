// RelayClaw - Asynchronous callback relay gateway for chat platforms
// License: MIT
//
// Copyright (c) 2026 RelayClaw contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal"
	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal/gateway"
	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal/initcmd"
	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal/secret"
	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal/send"
	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal/status"
	"github.com/tinyland-inc/relayclaw/cmd/relayclaw/internal/version"
)

func NewRelayclawCommand() *cobra.Command {
	short := fmt.Sprintf("%s relayclaw - Callback Relay Gateway v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "relayclaw",
		Short:   short,
		Example: "relayclaw gateway",
	}

	cmd.AddCommand(
		initcmd.NewInitCommand(),
		gateway.NewGatewayCommand(),
		secret.NewSecretCommand(),
		send.NewSendCommand(),
		status.NewStatusCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewRelayclawCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
