package agent

import (
	"github.com/MEKXH/dropwatch/internal/checkout"
	"github.com/MEKXH/dropwatch/internal/notify"
)

// TerminalMessage picks the one notification that reports outcome.
func TerminalMessage(runID, product string, o checkout.Outcome) notify.Message {
	switch o.Kind {
	case checkout.KindSuccess:
		return notify.Succeeded(runID, product, notify.FormatSummary(o.Summary))
	case checkout.KindDryRun:
		msg := notify.Succeeded(runID, product, "Dry run: order not submitted.\n"+notify.FormatSummary(o.Summary))
		msg.Title = "Dry run completed"
		msg.Priority = notify.PriorityNormal
		return msg
	case checkout.KindAmbiguous:
		return notify.Ambiguous(runID, product, o.URL)
	case checkout.KindSoldOut:
		return notify.SoldOut(runID, product)
	case checkout.KindAuthRequired:
		return notify.NeedsHuman(runID, "login challenge (two-factor or captcha)", o.Message)
	case checkout.KindStepUpRequired:
		return notify.NeedsHuman(runID, "payment requires 3D Secure verification", "Complete the purchase manually.")
	case checkout.KindRejected:
		return notify.Failed(runID, "rejected by approver", "")
	case checkout.KindTimeout:
		return notify.Failed(runID, "approval timed out", "No decision was received; the order was not submitted.")
	case checkout.KindPaymentDeclined:
		return notify.Failed(runID, "payment declined", o.Message)
	case checkout.KindApprovalUnavailable:
		return notify.Failed(runID, "approval could not be requested", o.Message)
	default:
		return notify.Failed(runID, "unexpected error", o.Message)
	}
}
