package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/IlyasAtabaev731/family-finance/internal/finance"
	"github.com/shopspring/decimal"
)

// Menu is the interactive text front end. Every prompt and message lives
// here; the service only ever sees parsed values.
type Menu struct {
	svc      *finance.Service
	in       *bufio.Scanner
	out      io.Writer
	currency string
}

func NewMenu(svc *finance.Service, in io.Reader, out io.Writer, currency string) *Menu {
	return &Menu{
		svc:      svc,
		in:       bufio.NewScanner(in),
		out:      out,
		currency: currency,
	}
}

// Run loops over the main menu until the user exits or input ends.
func (m *Menu) Run(ctx context.Context) error {
	for {
		fmt.Fprintln(m.out, "\nFamily Finance Management")
		fmt.Fprint(m.out, "\n------ MENU -------\n\n")
		fmt.Fprintln(m.out, "1. List Existing Users")
		fmt.Fprintln(m.out, "2. Add a New User")
		fmt.Fprintln(m.out, "3. Access your account")
		fmt.Fprintln(m.out, "4. Update Existing User Details")
		fmt.Fprintln(m.out, "5. Delete User")
		fmt.Fprintln(m.out, "6. Exit")

		choice, ok := m.prompt("\nEnter your choice: ")
		if !ok {
			return m.in.Err()
		}

		switch choice {
		case "1":
			m.listUsers(ctx)
		case "2":
			m.addUser(ctx)
		case "3":
			m.account(ctx)
		case "4":
			m.updateUser(ctx)
		case "5":
			m.deleteUser(ctx)
		case "6":
			fmt.Fprintln(m.out, "\nThanks for using our program :)")
			return nil
		default:
			fmt.Fprintln(m.out, "Invalid input.")
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (m *Menu) listUsers(ctx context.Context) {
	users, err := m.svc.ListUsers(ctx)
	if err != nil {
		m.report(err)
		return
	}
	printUsers(m.out, users)
}

func (m *Menu) addUser(ctx context.Context) {
	name, _ := m.prompt("Enter the user name: ")
	address, _ := m.prompt("Enter your address: ")
	phone, _ := m.prompt("Enter phone: ")

	id, err := m.svc.AddUser(ctx, name, address, phone)
	if err != nil {
		m.report(err)
		return
	}

	answer, _ := m.prompt(fmt.Sprintf("User added successfully with ID %d. Make a deposit now (y/n)? ", id))
	if strings.EqualFold(answer, "y") {
		m.deposit(ctx, id)
	}
}

func (m *Menu) updateUser(ctx context.Context) {
	id, ok := m.promptID("Enter the user ID you want to update: ")
	if !ok {
		return
	}
	name, _ := m.prompt("Enter your name: ")
	address, _ := m.prompt("Enter your address: ")
	phone, _ := m.prompt("New phone: ")

	if err := m.svc.UpdateUser(ctx, id, name, address, phone); err != nil {
		m.report(err)
		return
	}
	fmt.Fprintln(m.out, "User updated successfully.")
}

func (m *Menu) deleteUser(ctx context.Context) {
	id, ok := m.promptID("Enter the user ID you want to delete: ")
	if !ok {
		return
	}

	if err := m.svc.DeleteUser(ctx, id); err != nil {
		m.report(err)
		return
	}
	fmt.Fprintln(m.out, "User and associated transactions deleted successfully.")
}

// account is the per-user sub menu.
func (m *Menu) account(ctx context.Context) {
	id, ok := m.promptID("Enter your User ID: ")
	if !ok {
		return
	}
	user, err := m.svc.User(ctx, id)
	if err != nil {
		fmt.Fprintln(m.out, "User not found. Please check the User ID.")
		return
	}
	fmt.Fprintf(m.out, "\nWelcome, %s.\n", user.Name)

	for {
		fmt.Fprint(m.out, "\n|-|-| Existing User Menu |-|-|\n\n")
		fmt.Fprintln(m.out, "1. Deposit Amount")
		fmt.Fprintln(m.out, "2. Withdraw Amount")
		fmt.Fprintln(m.out, "3. View Balance")
		fmt.Fprintln(m.out, "4. View Transaction History")
		fmt.Fprintln(m.out, "5. Back to Main Menu")

		choice, ok := m.prompt("\nEnter your choice: ")
		if !ok {
			return
		}

		switch choice {
		case "1":
			m.deposit(ctx, id)
		case "2":
			m.withdraw(ctx, id)
		case "3":
			m.balance(ctx, id)
		case "4":
			m.history(ctx, id)
		case "5":
			fmt.Fprintln(m.out, "\nReturning to main menu.")
			return
		default:
			fmt.Fprintln(m.out, "\nInvalid input. Please select a valid option.")
		}
	}
}

func (m *Menu) deposit(ctx context.Context, id int64) {
	amount, ok := m.promptAmount("\nEnter amount to deposit: ")
	if !ok {
		return
	}
	balance, err := m.svc.Deposit(ctx, id, amount)
	if err != nil {
		m.report(err)
		return
	}
	fmt.Fprintln(m.out, "Deposit successful.")
	printBalance(m.out, id, balance, m.currency)
}

func (m *Menu) withdraw(ctx context.Context, id int64) {
	amount, ok := m.promptAmount("\nEnter amount to withdraw: ")
	if !ok {
		return
	}
	balance, err := m.svc.Withdraw(ctx, id, amount)
	if err != nil {
		m.report(err)
		return
	}
	fmt.Fprintln(m.out, "Withdrawal successful.")
	printBalance(m.out, id, balance, m.currency)
}

func (m *Menu) balance(ctx context.Context, id int64) {
	balance, err := m.svc.Balance(ctx, id)
	if err != nil {
		m.report(err)
		return
	}
	printBalance(m.out, id, balance, m.currency)
}

func (m *Menu) history(ctx context.Context, id int64) {
	entries, err := m.svc.History(ctx, id)
	if err != nil {
		m.report(err)
		return
	}
	printHistory(m.out, entries, m.currency)
}

func (m *Menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

func (m *Menu) promptID(label string) (int64, bool) {
	s, ok := m.prompt(label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(m.out, "Invalid user ID %q.\n", s)
		return 0, false
	}
	return id, true
}

func (m *Menu) promptAmount(label string) (decimal.Decimal, bool) {
	s, ok := m.prompt(label)
	if !ok {
		return decimal.Zero, false
	}
	amount, err := parseAmount(s)
	if err != nil {
		fmt.Fprintf(m.out, "Invalid amount %q.\n", s)
		return decimal.Zero, false
	}
	return amount, true
}

func (m *Menu) report(err error) {
	fmt.Fprintln(m.out, describe(err))
}
