package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/oauthgate/internal/oauth"
	"github.com/dropDatabas3/oauthgate/internal/security/statetoken"
)

func newStateCmd() *cobra.Command {
	var secret bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Genera un state OAuth (o, con --secret, un STATE_SECRET)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret {
				fmt.Fprintln(cmd.OutOrStdout(), base64.RawURLEncoding.EncodeToString(statetoken.RandomSecret()))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), oauth.GenerateState())
			return nil
		},
	}
	cmd.Flags().BoolVar(&secret, "secret", false, "genera una clave de firma para STATE_SECRET")
	return cmd
}
