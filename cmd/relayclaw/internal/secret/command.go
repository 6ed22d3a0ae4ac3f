package secret

import (
	"fmt"

	"github.com/spf13/cobra"

	pkgsecret "github.com/tinyland-inc/relayclaw/pkg/secret"
)

func NewSecretCommand() *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a callback secret",
		Args:  cobra.NoArgs,
		Example: `  relayclaw secret
  relayclaw secret --length 48`,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := pkgsecret.Generate(length)
			if err != nil {
				return err
			}
			fmt.Println(s)
			return nil
		},
	}

	cmd.Flags().IntVar(&length, "length", 32, "Secret length in bytes before hex encoding")

	return cmd
}
