package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hireline/internal/domain"
	"hireline/internal/engine"
)

func memberCmd() *cobra.Command {
	m := &cobra.Command{Use: "member", Short: "Manage members"}
	m.AddCommand(memberRegisterCmd())
	m.AddCommand(memberStatusCmd())
	m.AddCommand(memberVerifyCmd())
	m.AddCommand(memberListCmd())
	m.AddCommand(memberShowCmd())
	return m
}

func printMember(m domain.Member) error {
	return printJSONOrTable(map[string]any{
		"id":         m.ID,
		"status":     m.Status.String(),
		"verified":   m.Verified,
		"created_at": m.CreatedAt,
	})
}

func memberRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register --actor-id as a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.RegisterMember(ctx, actor())
				if err != nil {
					return err
				}
				return printMember(m)
			})
		},
	}
}

func memberStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <unset|in_search_of_work|closed>",
		Short: "Set your own job search status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, ok := domain.ParseMemberStatus(args[0])
			if !ok {
				return fmt.Errorf("unknown status %q", args[0])
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.SetMemberStatus(ctx, actor(), actor(), status)
				if err != nil {
					return err
				}
				return printMember(m)
			})
		},
	}
}

func memberVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <member-id>",
		Short: "Mark a member verified (platform owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.VerifyMember(ctx, actor(), args[0])
				if err != nil {
					return err
				}
				return printMember(m)
			})
		},
	}
}

func memberListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List members in registration order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				members, err := e.ListMembers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(members)
				}
				tw := newTable("#", "ID", "Status", "Verified", "Registered")
				for i, m := range members {
					tw.AppendRow(table.Row{i, m.ID, m.Status.String(), m.Verified, m.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func memberShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <member-id>",
		Short: "Show a member and their subscriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.GetMember(ctx, args[0])
				if err != nil {
					return err
				}
				subs, err := e.MemberSubscriptions(ctx, m.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"member": m, "subscriptions": subs})
				}
				if err := printMember(m); err != nil {
					return err
				}
				return printSubscriptions(subs)
			})
		},
	}
}

func factCmd() *cobra.Command {
	f := &cobra.Command{Use: "fact", Short: "Submit and confirm facts about members"}
	f.AddCommand(factAddCmd())
	f.AddCommand(factConfirmCmd())
	f.AddCommand(factListCmd())
	f.AddCommand(factShowCmd())
	return f
}

func factAddCmd() *cobra.Command {
	var id, payload string
	cmd := &cobra.Command{
		Use:   "add <member-id>",
		Short: "Submit a fact about a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.SubmitFact(ctx, actor(), args[0], id, payload)
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "fact id, unique per member")
	cmd.Flags().StringVar(&payload, "payload", "", "fact content")
	return cmd
}

func factConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <member-id> <fact-id>",
		Short: "Confirm a fact (verified members only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.ConfirmFact(ctx, actor(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
}

func factListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <member-id>",
		Short: "List facts about a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				facts, err := e.ListFacts(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(facts)
				}
				tw := newTable("#", "ID", "Author", "Confirmations", "Payload")
				for i, f := range facts {
					tw.AppendRow(table.Row{i, f.ID, f.AuthorID, f.ConfirmationCount, f.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func factShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <member-id> <fact-id>",
		Short: "Show a fact and who confirmed it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.GetFact(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				confirmers, err := e.FactConfirmers(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"fact": f, "confirmers": confirmers})
			})
		},
	}
}
