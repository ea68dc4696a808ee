package main

import (
	"fmt"
	"time"

	"github.com/samigerges/workflow-sub001/internal/auth"
	"github.com/samigerges/workflow-sub001/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSessionTokenCommand() *cobra.Command {
	var (
		userID string
		email  string
		roles  []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "session-token",
		Short: "Mint a development session token signed with the configured TAuth secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			token, err := auth.NewSessionToken(auth.SessionTokenConfig{
				SigningSecret: []byte(appConfig.TAuthSigningKey),
				Issuer:        appConfig.TAuthIssuer,
				UserID:        userID,
				Email:         email,
				Roles:         roles,
				TTL:           ttl,
				Now:           time.Now(),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id placed in the token (provider:subject)")
	cmd.Flags().StringVar(&email, "email", "", "User email placed in the token")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role granted to the user (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
