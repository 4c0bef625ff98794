package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/export"
	"hireline/internal/repo"
)

func vacancyCmd() *cobra.Command {
	v := &cobra.Command{Use: "vacancy", Short: "Manage vacancies"}
	v.AddCommand(vacancyCreateCmd())
	v.AddCommand(vacancyShowCmd())
	v.AddCommand(vacancyListCmd())
	v.AddCommand(vacancyToggleCmd("enable", "Open the vacancy for subscriptions", engine.Engine.EnableVacancy))
	v.AddCommand(vacancyToggleCmd("disable", "Close the vacancy for subscriptions", engine.Engine.DisableVacancy))
	v.AddCommand(vacancyPoolCmd())
	return v
}

func vacancyCreateCmd() *cobra.Command {
	var key domain.VacancyKey
	var pool int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a vacancy (tenant owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.CreateVacancy(ctx, actor(), key, pool)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	vacancyFlags(cmd, &key)
	cmd.Flags().Int64Var(&pool, "pool", 0, "pool amount reserved for payouts")
	return cmd
}

func vacancyShowCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a vacancy and its pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetVacancy(ctx, key)
				if err != nil {
					return err
				}
				stages, err := e.Pipeline(ctx, key)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"vacancy": v, "stages": stages})
				}
				fmt.Printf("%s/%s enabled=%t pool=%d\n", v.TenantID, v.ID, v.Enabled, v.PoolAmount)
				return printStages(stages)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func vacancyListCmd() *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vacancies of a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListVacancies(ctx, tenantID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Tenant", "ID", "Enabled", "Pool", "Updated")
				for _, v := range items {
					tw.AppendRow(table.Row{v.TenantID, v.ID, v.Enabled, v.PoolAmount, v.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func vacancyToggleCmd(use, short string, toggle func(engine.Engine, context.Context, string, domain.VacancyKey) (domain.Vacancy, error)) *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := toggle(e, ctx, actor(), key)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func vacancyPoolCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "pool <amount>",
		Short: "Set the vacancy pool amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.SetPoolAmount(ctx, actor(), key, amount)
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func stageCmd() *cobra.Command {
	s := &cobra.Command{Use: "stage", Short: "Edit a vacancy pipeline"}
	s.AddCommand(stageListCmd())
	s.AddCommand(stageAppendCmd())
	s.AddCommand(stageUpdateCmd())
	s.AddCommand(stageDeleteCmd())
	s.AddCommand(stageMoveCmd())
	return s
}

func stageFlags(cmd *cobra.Command, st *domain.Stage) {
	cmd.Flags().StringVar(&st.Name, "name", "", "stage name")
	cmd.Flags().Int64Var(&st.Amount, "amount", 0, "payout on completion")
	cmd.Flags().BoolVar(&st.Approvable, "approvable", false, "advanced by tenant staff instead of the platform")
}

func stageListCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipeline stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stages, err := e.Pipeline(ctx, key)
				if err != nil {
					return err
				}
				return printStages(stages)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func stageAppendCmd() *cobra.Command {
	var key domain.VacancyKey
	var st domain.Stage
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append a stage to the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stages, err := e.AppendStage(ctx, actor(), key, st)
				if err != nil {
					return err
				}
				return printStages(stages)
			})
		},
	}
	vacancyFlags(cmd, &key)
	stageFlags(cmd, &st)
	return cmd
}

func stageUpdateCmd() *cobra.Command {
	var key domain.VacancyKey
	var st domain.Stage
	cmd := &cobra.Command{
		Use:   "update <index>",
		Short: "Replace the stage at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex("index", args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stages, err := e.UpdateStage(ctx, actor(), key, idx, st)
				if err != nil {
					return err
				}
				return printStages(stages)
			})
		},
	}
	vacancyFlags(cmd, &key)
	stageFlags(cmd, &st)
	return cmd
}

func stageDeleteCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete the stage at index, shifting later stages left",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex("index", args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stages, err := e.DeleteStage(ctx, actor(), key, idx)
				if err != nil {
					return err
				}
				return printStages(stages)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func stageMoveCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a stage to a new position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseIndex("from", args[0])
			if err != nil {
				return err
			}
			to, err := parseIndex("to", args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stages, err := e.MoveStage(ctx, actor(), key, from, to)
				if err != nil {
					return err
				}
				return printStages(stages)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func subCmd() *cobra.Command {
	s := &cobra.Command{Use: "sub", Short: "Vacancy subscriptions"}
	s.AddCommand(subSubscribeCmd())
	s.AddCommand(subResetCmd())
	s.AddCommand(subPositionCmd())
	s.AddCommand(subListCmd())
	return s
}

func subSubscribeCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe --actor-id to an enabled vacancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Subscribe(ctx, actor(), key)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func subResetCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "reset <member-id>",
		Short: "Reset a subscriber to the first stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.ResetPosition(ctx, actor(), key, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func subPositionCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "position <member-id>",
		Short: "Show a member's position (-1 when not subscribed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pos, err := e.Position(ctx, key, args[0])
				if err != nil {
					return err
				}
				passed, err := e.Passed(ctx, key, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"member_id": args[0], "position": pos, "passed": passed})
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func subListCmd() *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscribers in subscription order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				subs, err := e.Subscribers(ctx, key)
				if err != nil {
					return err
				}
				return printSubscriptions(subs)
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func settleCmd() *cobra.Command {
	s := &cobra.Command{Use: "settle", Short: "Advance subscribers and pay out stages"}
	s.AddCommand(settleStepCmd("approve <member-id>", "Approve the current approvable stage (tenant staff)", engine.Engine.ApproveLevelUp))
	s.AddCommand(settleStepCmd("level-up <member-id>", "Advance the current non-approvable stage (platform owner)", engine.Engine.LevelUp))
	return s
}

func settleStepCmd(use, short string, step func(engine.Engine, context.Context, string, domain.VacancyKey, string) (domain.Settlement, error)) *cobra.Command {
	var key domain.VacancyKey
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := step(e, ctx, actor(), key, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("%s passed stage %d (%s): paid %d, fee %d to %s\n", s.MemberID, s.StageIndex, s.StageName, s.Net, s.Fee, s.Beneficiary)
				if s.Passed {
					fmt.Println("pipeline completed")
				}
				return nil
			})
		},
	}
	vacancyFlags(cmd, &key)
	return cmd
}

func settlementCmd() *cobra.Command {
	s := &cobra.Command{Use: "settlement", Short: "Inspect the payout ledger"}
	s.AddCommand(settlementListCmd())
	s.AddCommand(settlementExportCmd())
	return s
}

func settlementFilterFlags(cmd *cobra.Command, f *repo.SettlementFilter) {
	cmd.Flags().StringVar(&f.TenantID, "tenant", "", "tenant filter")
	cmd.Flags().StringVar(&f.VacancyID, "vacancy", "", "vacancy filter")
	cmd.Flags().StringVar(&f.MemberID, "member", "", "member filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum rows (0 for all)")
}

func settlementListCmd() *cobra.Command {
	var f repo.SettlementFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List settlements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Settlements(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Time", "Tenant", "Vacancy", "Member", "Stage", "Amount", "Fee", "Net", "Gate", "Actor")
				for _, s := range items {
					tw.AppendRow(table.Row{s.CreatedAt, s.TenantID, s.VacancyID, s.MemberID, fmt.Sprintf("%d %s", s.StageIndex, s.StageName), s.Amount, s.Fee, s.Net, s.Gate, s.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	settlementFilterFlags(cmd, &f)
	return cmd
}

func settlementExportCmd() *cobra.Command {
	var f repo.SettlementFilter
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write settlements to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Settlements(ctx, f)
				if err != nil {
					return err
				}
				buf, err := export.Settlements(items)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
					return err
				}
				fmt.Printf("wrote %d settlements to %s\n", len(items), out)
				return nil
			})
		},
	}
	settlementFilterFlags(cmd, &f)
	cmd.Flags().StringVarP(&out, "out", "o", "settlements.xlsx", "output file")
	return cmd
}
