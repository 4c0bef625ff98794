package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/engine"
	"hireline/internal/server"
)

func platformCmd() *cobra.Command {
	p := &cobra.Command{Use: "platform", Short: "Platform settings and owners"}
	settings := &cobra.Command{Use: "settings", Short: "Fee, beneficiary and pipeline limits"}
	settings.AddCommand(platformSettingsShowCmd())
	settings.AddCommand(platformSettingsSetCmd())
	owner := &cobra.Command{Use: "owner", Short: "Manage platform owners"}
	owner.AddCommand(platformOwnerListCmd())
	owner.AddCommand(platformOwnerAddCmd())
	owner.AddCommand(platformOwnerRemoveCmd())
	p.AddCommand(settings, owner)
	return p
}

func platformSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show stored platform settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Settings(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
}

func platformSettingsSetCmd() *cobra.Command {
	var (
		maxLength   int
		fee         int64
		beneficiary string
		blockDelete bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change platform settings (platform owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var u engine.SettingsUpdate
			if cmd.Flags().Changed("max-length") {
				u.PipelineMaxLength = &maxLength
			}
			if cmd.Flags().Changed("fee") {
				u.ServiceFeePercent = &fee
			}
			if cmd.Flags().Changed("beneficiary") {
				u.Beneficiary = &beneficiary
			}
			if cmd.Flags().Changed("block-delete-below-active") {
				u.BlockDeleteBelowActive = &blockDelete
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateSettings(ctx, actor(), u)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().IntVar(&maxLength, "max-length", 0, "maximum pipeline length")
	cmd.Flags().Int64Var(&fee, "fee", 0, "service fee percent (0..100)")
	cmd.Flags().StringVar(&beneficiary, "beneficiary", "", "fee receiver account")
	cmd.Flags().BoolVar(&blockDelete, "block-delete-below-active", false, "reject deleting stages below an active subscriber")
	return cmd
}

func platformOwnerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List platform owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				owners, err := e.PlatformOwners(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(owners)
			})
		},
	}
}

func platformOwnerAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <actor-id>",
		Short: "Grant platform ownership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.AddPlatformOwner(ctx, actor(), args[0]); err != nil {
					return err
				}
				fmt.Println("added platform owner", args[0])
				return nil
			})
		},
	}
}

func platformOwnerRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <actor-id>",
		Short: "Revoke platform ownership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RemovePlatformOwner(ctx, actor(), args[0]); err != nil {
					return err
				}
				fmt.Println("removed platform owner", args[0])
				return nil
			})
		},
	}
}

func authCmd() *cobra.Command {
	a := &cobra.Command{Use: "auth", Short: "Credentials for the HTTP API"}
	a.AddCommand(authTokenCmd())
	keys := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	keys.AddCommand(apiKeyCreateCmd())
	keys.AddCommand(apiKeyListCmd())
	keys.AddCommand(apiKeyRevokeCmd())
	a.AddCommand(keys)
	return a
}

func authTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --actor-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("HIRELINE_JWT_SECRET is required to sign tokens")
			}
			token, err := server.SignToken(secret, actor(), ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"actor_id": actor(), "token": token, "expires_in": int64(ttl.Seconds())})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func apiKeyCreateCmd() *cobra.Command {
	var owner, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key (shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				owner = actor()
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, secret, err := e.CreateAPIKey(ctx, actor(), owner, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": k.ID, "actor_id": k.ActorID, "name": k.Name, "key": secret})
				}
				fmt.Printf("id:  %s\nkey: %s\n", k.ID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "for", "", "identity the key acts as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "label")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable("ID", "Actor", "Name", "Created")
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "for", "", "only keys of this identity")
	return cmd
}

func apiKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RevokeAPIKey(ctx, actor(), args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
}
