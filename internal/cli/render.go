package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/IlyasAtabaev731/family-finance/internal/domain/models"
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// timestampLayout is how entry times are shown, day first.
const timestampLayout = "02-01-06 15:04:05"

// formatAmount renders amount in currency, e.g. ₹1,500.00.
func formatAmount(amount decimal.Decimal, currency string) string {
	c := money.GetCurrency(currency)
	if c == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0)
	if !minor.BigInt().IsInt64() {
		return amount.StringFixed(int32(c.Fraction)) + " " + c.Code
	}
	return money.New(minor.IntPart(), c.Code).Display()
}

func printUsers(w io.Writer, users []models.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tPHONE")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Address, u.Phone)
	}
	tw.Flush()
}

func printHistory(w io.Writer, entries []models.LedgerEntry, currency string) {
	fmt.Fprintln(w, "Transaction History:")
	if len(entries) == 0 {
		fmt.Fprintln(w, "No transactions yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tTYPE\tAMOUNT\tDATE\t")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", e.ID, e.Kind, formatAmount(e.Amount, currency), e.CreatedAt.Local().Format(timestampLayout))
	}
	tw.Flush()
}

func printBalance(w io.Writer, userID int64, balance decimal.Decimal, currency string) {
	fmt.Fprintf(w, "Current balance for user %d is: %s\n", userID, formatAmount(balance, currency))
}
