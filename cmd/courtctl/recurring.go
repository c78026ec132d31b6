package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

func recurringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "定期予約を管理する",
	}
	cmd.AddCommand(recurringRegenerateCmd())
	return cmd
}

type regenerateSummary struct {
	TemplateID   string            `json:"template_id"`
	Created      []string          `json:"created"`
	Conflicts    []conflictSummary `json:"conflicts"`
	Aborted      bool              `json:"aborted"`
	NextFromDate string            `json:"next_from_date"`
}

type conflictSummary struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

func recurringRegenerateCmd() *cobra.Command {
	var (
		templateID string
		weeks      int
		policy     string
	)
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "定期予約を最後に生成した週の翌週から追加生成する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if templateID == "" {
				return fmt.Errorf("--template は必須です")
			}
			if weeks < 1 || weeks > recurring.MaxWeeksAhead {
				return fmt.Errorf("--weeks は1〜%dの範囲で指定してください", recurring.MaxWeeksAhead)
			}
			p := recurring.ConflictPolicy(policy)
			if !p.Valid() {
				return fmt.Errorf("--policy は skip か abort を指定してください")
			}

			ctx := cmd.Context()
			c, err := openContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.Recurring.Generate(ctx, application.GenerateInput{
				TemplateID: templateID,
				WeeksAhead: weeks,
				Policy:     p,
				Actor:      "courtctl",
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summarize(templateID, result))
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "テンプレートID")
	cmd.Flags().IntVar(&weeks, "weeks", 4, "生成する週数")
	cmd.Flags().StringVar(&policy, "policy", string(recurring.PolicySkip), "衝突時の挙動 (skip|abort)")
	return cmd
}

func summarize(templateID string, r *application.GenerateResult) regenerateSummary {
	s := regenerateSummary{
		TemplateID:   templateID,
		Created:      make([]string, 0, len(r.Created)),
		Conflicts:    make([]conflictSummary, 0, len(r.Conflicts)),
		Aborted:      r.Aborted,
		NextFromDate: timerange.FormatDate(r.NextFromDate),
	}
	for _, res := range r.Created {
		s.Created = append(s.Created, timerange.FormatDate(res.Date))
	}
	for _, c := range r.Conflicts {
		s.Conflicts = append(s.Conflicts, conflictSummary{Date: timerange.FormatDate(c.Date), Reason: c.Reason})
	}
	return s
}
