package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/app"
	"hireline/internal/domain"
	"hireline/internal/engine"
)

func tenantCmd() *cobra.Command {
	t := &cobra.Command{Use: "tenant", Short: "Manage tenants"}
	t.AddCommand(tenantCreateCmd())
	t.AddCommand(tenantShowCmd())
	t.AddCommand(tenantListCmd())
	t.AddCommand(tenantRoleCmd("add-owner", "Add a tenant owner", engine.Engine.AddTenantOwner))
	t.AddCommand(tenantRoleCmd("add-collaborator", "Add a tenant collaborator", engine.Engine.AddTenantCollaborator))
	t.AddCommand(tenantApproveCmd())
	t.AddCommand(tenantWithdrawCmd())
	return t
}

func tenantCreateCmd() *cobra.Command {
	var id, name, owner string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant (platform owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" || owner == "" {
				return fmt.Errorf("--id and --owner required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTenant(ctx, actor(), id, name, owner)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "tenant id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&owner, "owner", "", "first tenant owner")
	return cmd
}

func tenantShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tenant-id>",
		Short: "Show a tenant with staff and funding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTenant(ctx, args[0])
				if err != nil {
					return err
				}
				owners, err := e.TenantOwners(ctx, t.ID)
				if err != nil {
					return err
				}
				collaborators, err := e.TenantCollaborators(ctx, t.ID)
				if err != nil {
					return err
				}
				balance, allowance, err := e.TenantFunds(ctx, t.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"tenant":        t,
					"owners":        owners,
					"collaborators": collaborators,
					"balance":       balance,
					"allowance":     allowance,
				})
			})
		},
	}
}

func tenantListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tenants, err := e.ListTenants(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tenants)
				}
				tw := newTable("ID", "Name", "Account", "Created")
				for _, t := range tenants {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Account, t.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func tenantRoleCmd(use, short string, add func(engine.Engine, context.Context, string, string, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <tenant-id> <actor-id>",
		Short: short + " (tenant owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := add(e, ctx, actor(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("%s: %s on %s\n", use, args[1], args[0])
				return nil
			})
		},
	}
}

func tenantApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <tenant-id> <amount>",
		Short: "Set the platform allowance over the tenant account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ApproveTenantFunds(ctx, actor(), args[0], amount); err != nil {
					return err
				}
				balance, allowance, err := e.TenantFunds(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"tenant_id": args[0], "balance": balance, "allowance": allowance})
			})
		},
	}
}

func tenantWithdrawCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "withdraw <tenant-id> <amount>",
		Short: "Transfer tokens out of the tenant account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			if to == "" {
				to = actor()
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.WithdrawTenantFunds(ctx, actor(), args[0], to, amount); err != nil {
					return err
				}
				balance, err := e.BalanceOf(ctx, domain.TenantAccount(args[0]))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"tenant_id": args[0], "balance": balance})
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "receiving account (defaults to --actor-id)")
	return cmd
}

func tokenCmd() *cobra.Command {
	t := &cobra.Command{Use: "token", Short: "Inspect and move tokens"}
	t.AddCommand(tokenBalanceCmd())
	t.AddCommand(tokenAllowanceCmd())
	t.AddCommand(tokenTransferCmd())
	t.AddCommand(tokenMintCmd())
	t.AddCommand(tokenSupplyCmd())
	return t
}

func tokenBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account...]",
		Short: "Show balances (defaults to --actor-id)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{actor()}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				balances := make(map[string]int64, len(args))
				tw := newTable("Account", "Balance")
				for _, account := range args {
					b, err := e.BalanceOf(ctx, account)
					if err != nil {
						return err
					}
					balances[account] = b
					tw.AppendRow(table.Row{account, b})
				}
				if viper.GetBool("json") {
					return printJSON(balances)
				}
				tw.Render()
				return nil
			})
		},
	}
}

func tokenAllowanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allowance <owner> <spender>",
		Short: "Show what spender may draw from owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Allowance(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"owner": args[0], "spender": args[1], "allowance": a})
			})
		},
	}
}

func tokenTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer from --actor-id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Transfer(ctx, actor(), args[0], amount); err != nil {
					return err
				}
				b, err := e.BalanceOf(ctx, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"account": actor(), "balance": b})
			})
		},
	}
}

func tokenMintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <to> <amount>",
		Short: "Issue new supply (platform owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Mint(ctx, actor(), args[0], amount); err != nil {
					return err
				}
				b, err := e.BalanceOf(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"account": args[0], "balance": b})
			})
		},
	}
}

func tokenSupplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supply",
		Short: "Show total supply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				total, err := ws.Engine.TotalSupply(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"symbol": ws.Config.Token.Symbol, "total_supply": total})
			})
		},
	}
}
