package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/eshaffer321/ledgermatch/internal/api/dto"
)

// PrintSummary prints the outcome of a bank reconciliation.
func PrintSummary(w io.Writer, runID string, persisted bool, data dto.ReconciliationResponse) {
	s := data.Summary
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Run %s", runID)
	if persisted {
		fmt.Fprint(w, " (saved)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Transactions=%d Invoices=%d Matched=%.1f%%\n",
		s.TotalTransactions, s.TotalInvoices, s.MatchPercentage)
	fmt.Fprintf(w, "  %-20s %5d %14.2f\n", "Auto matched", s.AutoMatchedCount, s.AutoMatchedAmount)
	fmt.Fprintf(w, "  %-20s %5d %14.2f\n", "Suggested", s.SuggestedCount, s.SuggestedAmount)
	fmt.Fprintf(w, "  %-20s %5d %14.2f\n", "Manual review", s.ManualReviewCount, s.ManualReviewAmount)
	fmt.Fprintf(w, "  %-20s %5d %14.2f\n", "Unmatched bank", s.UnmatchedBankCount, s.UnmatchedBankAmount)
	fmt.Fprintf(w, "  %-20s %5d %14.2f\n", "Unmatched invoices", s.UnmatchedInvoicesCount, s.UnmatchedInvoicesAmount)

	if data.Truncated {
		fmt.Fprintln(w, "\nResult truncated:")
		for _, c := range data.CapacityNotices {
			fmt.Fprintf(w, "  - %s: %s\n", c.Limit, c.Detail)
		}
	}

	printRecordErrors(w, data.NormalizationErrors)
}

// PrintVendorSummary prints the outcome of a vendor register reconciliation.
func PrintVendorSummary(w io.Writer, runID string, persisted bool, data dto.VendorRegisterData) {
	counts := make(map[string]int)
	for _, inv := range data.Invoices {
		counts[inv.Status]++
	}

	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Run %s", runID)
	if persisted {
		fmt.Fprint(w, " (saved)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Invoices=%d Matched=%d Mismatch=%d Pending=%d MissingInFeed=%d MissingInBooks=%d\n",
		len(data.Invoices),
		counts["matched"],
		counts["amount_mismatch"],
		counts["pending_review"],
		counts["missing_in_vendor_feed"],
		len(data.MissingInBooks))

	if len(data.VendorsAtRisk) > 0 {
		fmt.Fprintf(w, "\nAt risk: %.2f\n", data.AmountAtRisk)
		for _, v := range data.VendorsAtRisk {
			name := v.VendorName
			if v.VendorTaxID != "" {
				name += " [" + v.VendorTaxID + "]"
			}
			fmt.Fprintf(w, "  - %-40s %3d %14.2f\n", name, v.InvoiceCount, v.Amount)
		}
	}

	printRecordErrors(w, data.Matching.NormalizationErrors)
}

func printRecordErrors(w io.Writer, errs []dto.RecordErrorResponse) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRejected records:")
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s %s: %s\n", e.RecordType, e.RecordID, e.Reason)
	}
}
