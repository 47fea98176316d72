package commands

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/MEKXH/dropwatch/internal/approval"
	"github.com/spf13/cobra"
)

func NewApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Inspect and decide approval requests on a running server",
	}
	cmd.PersistentFlags().String("url", "", "Server base URL (default: gateway.public_url)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status <run_id>",
			Short: "Show an approval request",
			Args:  cobra.ExactArgs(1),
			RunE:  runApprovalStatus,
		},
		&cobra.Command{
			Use:   "approve <run_id>",
			Short: "Approve a pending purchase",
			Args:  cobra.ExactArgs(1),
			RunE:  runApprovalDecision("approve"),
		},
		&cobra.Command{
			Use:   "reject <run_id>",
			Short: "Reject a pending purchase",
			Args:  cobra.ExactArgs(1),
			RunE:  runApprovalDecision("reject"),
		},
	)

	return cmd
}

func approvalURL(cmd *cobra.Command, runID, action string) string {
	base, _ := cmd.Flags().GetString("url")
	return serverURL(base) + "/approval/" + url.PathEscape(runID) + "/" + action
}

func runApprovalStatus(cmd *cobra.Command, args []string) error {
	req, err := http.NewRequest(http.MethodGet, approvalURL(cmd, args[0], "status"), nil)
	if err != nil {
		return err
	}
	var rec approval.Record
	if _, err := doJSON(cmd.Context(), req, &rec); err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Approval " + rec.RunID))
	printRow("Status", statusLabel(rec.Status))
	if rec.Decision != "" {
		printRow("Decision", string(rec.Decision))
	}
	printRow("Created", rec.CreatedAt.Local().Format(time.RFC3339))
	printRow("Expires", rec.ExpiresAt.Local().Format(time.RFC3339))
	if rec.DecidedAt != nil {
		printRow("Decided", rec.DecidedAt.Local().Format(time.RFC3339))
	}
	if len(rec.OrderSummary) > 0 {
		fmt.Println()
		fmt.Println(sectionStyle.Render("Order summary"))
		keys := make([]string, 0, len(rec.OrderSummary))
		for k := range rec.OrderSummary {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			printRow(k, rec.OrderSummary[k])
		}
	}
	return nil
}

func runApprovalDecision(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodPost, approvalURL(cmd, args[0], action), nil)
		if err != nil {
			return err
		}
		var resp struct {
			Status string `json:"status"`
			RunID  string `json:"run_id"`
		}
		if _, err := doJSON(cmd.Context(), req, &resp); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", statusLabel(approval.Status(resp.Status)), resp.RunID)
		return nil
	}
}

func statusLabel(s approval.Status) string {
	switch s {
	case approval.StatusApproved:
		return colored(okColor, string(s))
	case approval.StatusRejected, approval.StatusExpired:
		return colored(badColor, string(s))
	default:
		return colored(warnColor, string(s))
	}
}
