package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmatosp/contaclara/internal/cli"
	"github.com/jmatosp/contaclara/internal/common"
	"github.com/jmatosp/contaclara/internal/engine"
	"github.com/jmatosp/contaclara/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage classification rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active classification rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			user, err := requireUser()
			if err != nil {
				return err
			}

			store, cleanup, err := openStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			rules, err := store.ListActiveByUser(ctx, user)
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No active rules."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tPRIORITY\tLEAF\tTYPE\tKEYWORD\tNEGATIVE")
			for _, r := range rules {
				_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\n",
					r.ID, r.Priority, r.LeafID, r.Type, r.Keyword, r.NegativeKeyword)
			}
			return w.Flush()
		},
	}
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <keyword>",
		Short: "Create a rule and reclassify",
		Long: `Create a keyword rule targeting a taxonomy leaf and immediately re-run
classification. When an active rule with the same leaf, priority and negative
keywords exists, the keyword is merged into it instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			user, err := requireUser()
			if err != nil {
				return err
			}

			store, cleanup, err := openStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			leafID, _ := cmd.Flags().GetInt64("leaf")
			priority, _ := cmd.Flags().GetInt("priority")
			negative, _ := cmd.Flags().GetString("negative")
			ruleType, _ := cmd.Flags().GetString("type")
			fixVar, _ := cmd.Flags().GetString("fix-var")

			rule := model.Rule{
				Keyword:         args[0],
				NegativeKeyword: negative,
				LeafID:          leafID,
				Priority:        priority,
				Type:            model.RuleType(ruleType),
				FixVar:          model.FixVar(fixVar),
			}

			eng := engine.New(store)
			result, err := eng.CreateRuleAndApply(ctx, user, rule)
			if err != nil {
				if errors.Is(err, common.ErrSelfCancelingRule) || errors.Is(err, common.ErrEmptyKeyword) {
					fmt.Println(cli.FormatWarning(err.Error()))
					return nil
				}
				return fmt.Errorf("failed to create rule: %w", err)
			}

			verb := "created"
			if result.Merged {
				verb = "merged into"
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s rule %d; classified %d transaction(s), %d conflict(s)",
				verb, result.RuleID, result.Applied.Updated, result.Applied.Conflicts)))
			return nil
		},
	}

	cmd.Flags().Int64("leaf", 0, "target taxonomy leaf id (see 'contaclara categories')")
	cmd.Flags().Int("priority", 0, "rule priority; higher wins")
	cmd.Flags().String("negative", "", "semicolon-separated negative keywords")
	cmd.Flags().String("type", string(model.RuleTypeExpense), "rule type: Despesa or Receita")
	cmd.Flags().String("fix-var", string(model.FixVarVariable), "cadence hint: Fixo or Variável")
	_ = cmd.MarkFlagRequired("leaf")
	return cmd
}
