package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-substitute/internal/bootstrap"
	"github.com/noah-isme/sma-substitute/internal/dto"
	"github.com/noah-isme/sma-substitute/internal/models"
)

func newRunCmd(env *cmdEnv) *cobra.Command {
	var (
		date   string
		absent []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Assign substitutes for a date (uses the stored absentee list when --absent is omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.RunRequest{Date: date}
			for _, name := range absent {
				req.Absentees = append(req.Absentees, dto.AbsenteeRequest{Name: name})
			}
			return env.with(cmd, func(app *bootstrap.App) error {
				result, runErr := app.Substitutions.Run(cmd.Context(), req)
				if result == nil {
					return runErr
				}
				out := cmd.OutOrStdout()
				if *env.json {
					if err := env.printJSON(out, result); err != nil {
						return err
					}
					return runErr
				}
				_, _ = fmt.Fprintf(out, "Run %s for %s (%s)\n", result.RunID, result.Date, result.Day)
				printAssignments(cmd, result.Assignments)
				printWarnings(cmd, result.Warnings)
				return runErr
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", today(), "Date to cover (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&absent, "absent", nil, "Absent teacher name (repeatable)")
	return cmd
}

func newVerifyCmd(env *cmdEnv) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Audit the stored assignments of a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(app *bootstrap.App) error {
				resp, err := app.Verifier.Verify(cmd.Context(), date)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if *env.json {
					return env.printJSON(out, resp)
				}
				for _, report := range resp.Reports {
					_, _ = fmt.Fprintf(out, "%-22s %s  %s\n", report.Check, report.Status, report.Details)
				}
				if !resp.Passed {
					return fmt.Errorf("verification failed for %s", date)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", today(), "Date to audit (YYYY-MM-DD)")
	return cmd
}

func newExportCmd(env *cmdEnv) *cobra.Command {
	var (
		date   string
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the assignment sheet of a date as CSV or PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(app *bootstrap.App) error {
				result, err := app.Exports.Export(cmd.Context(), dto.ExportRequest{Date: date, Format: dto.ExportFormat(format)})
				if err != nil {
					return err
				}
				if out == "-" {
					_, err = cmd.OutOrStdout().Write(result.Body)
					return err
				}
				if out == "" {
					out = result.Filename
				}
				if err := os.WriteFile(out, result.Body, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", out, len(result.Body))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", today(), "Date to export (YYYY-MM-DD)")
	cmd.Flags().StringVar(&format, "format", string(dto.ExportFormatCSV), "csv or pdf")
	cmd.Flags().StringVar(&out, "out", "", "Output file, - for stdout (default substitutions-<date>.<format>)")
	return cmd
}

func newTeachersCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "teachers",
		Short: "List the canonical teacher registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(app *bootstrap.App) error {
				teachers, err := app.Substitutions.Teachers(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if *env.json {
					return env.printJSON(out, teachers)
				}
				for _, t := range teachers {
					role := "regular"
					if t.IsSubstitute {
						role = "substitute"
					}
					phone := t.Phone
					if phone == "" {
						phone = "-"
					}
					_, _ = fmt.Fprintf(out, "%-28s grade %-2d %-10s %s\n", t.CanonicalName, t.GradeLevel, role, phone)
				}
				return nil
			})
		},
	}
}

func printAssignments(cmd *cobra.Command, assignments []models.SubstituteAssignment) {
	out := cmd.OutOrStdout()
	if len(assignments) == 0 {
		_, _ = fmt.Fprintln(out, "No new assignments.")
		return
	}
	for _, a := range assignments {
		_, _ = fmt.Fprintf(out, "  P%-2d %-6s %-24s -> %s (%s)\n", a.Period, a.ClassName, a.OriginalTeacher, a.Substitute, a.SubstitutePhone)
	}
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Warnings (%d):\n", len(warnings))
	for _, w := range warnings {
		_, _ = fmt.Fprintf(out, "  - %s\n", w)
	}
}
