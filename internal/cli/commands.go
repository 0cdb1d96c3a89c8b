// Package cli implements the finance command line: one subcommand per
// directory/ledger operation plus the interactive menu.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/IlyasAtabaev731/family-finance/internal/finance"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// Register the subcommands.
// A main package will call Register() and then subcommands.Execute(ctx, env).
func Register(c *subcommands.Commander) {
	c.Register(&usersCmd{}, "users")
	c.Register(&addUserCmd{}, "users")
	c.Register(&updateUserCmd{}, "users")
	c.Register(&deleteUserCmd{}, "users")

	c.Register(&depositCmd{}, "ledger")
	c.Register(&withdrawCmd{}, "ledger")
	c.Register(&balanceCmd{}, "ledger")
	c.Register(&historyCmd{}, "ledger")

	c.Register(&menuCmd{}, "")
}

// Env is handed to every command through subcommands.Execute.
// The service is opened on first use so that help never touches storage.
type Env struct {
	In       io.Reader
	Out      io.Writer
	Currency string

	open func() (*finance.Service, error)
	svc  *finance.Service
}

func NewEnv(in io.Reader, out io.Writer, currency string, open func() (*finance.Service, error)) *Env {
	return &Env{In: in, Out: out, Currency: currency, open: open}
}

func (e *Env) Service() (*finance.Service, error) {
	if e.svc == nil {
		svc, err := e.open()
		if err != nil {
			return nil, err
		}
		e.svc = svc
	}
	return e.svc, nil
}

// run unpacks the Env and maps the outcome of fn to an exit status.
func run(args []interface{}, fn func(env *Env, svc *finance.Service) error) subcommands.ExitStatus {
	if len(args) == 0 {
		return subcommands.ExitFailure
	}
	env, ok := args[0].(*Env)
	if !ok {
		return subcommands.ExitFailure
	}

	svc, err := env.Service()
	if err != nil {
		fmt.Fprintf(env.Out, "Error opening storage: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := fn(env, svc); err != nil {
		fmt.Fprintln(env.Out, describe(err))
		if errors.Is(err, finance.ErrValidation) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// describe turns a service error into the message shown to the user.
func describe(err error) string {
	switch {
	case errors.Is(err, finance.ErrInsufficientFunds):
		return "Insufficient balance."
	case errors.Is(err, finance.ErrNotFound):
		return "User not found. Please check the User ID."
	case errors.Is(err, finance.ErrValidation):
		return "Invalid input: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}

// parseAmount accepts plain decimals, optionally with thousands separators.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return decimal.NewFromString(s)
}

type usersCmd struct{}

func (*usersCmd) Name() string     { return "users" }
func (*usersCmd) Synopsis() string { return "list family members" }
func (*usersCmd) Usage() string {
	return `users

  Lists every user in the order they were added.
`
}
func (*usersCmd) SetFlags(*flag.FlagSet) {}

func (c *usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(args, func(env *Env, svc *finance.Service) error {
		users, err := svc.ListUsers(ctx)
		if err != nil {
			return err
		}
		printUsers(env.Out, users)
		return nil
	})
}

type addUserCmd struct {
	name    string
	address string
	phone   string
	deposit string
}

func (*addUserCmd) Name() string     { return "add-user" }
func (*addUserCmd) Synopsis() string { return "add a family member with an empty ledger" }
func (*addUserCmd) Usage() string {
	return `add-user -name <name> -address <address> [-phone <phone>] [-deposit <amount>]

  Adds a user and opens their ledger. With -deposit, an opening deposit is
  recorded right away.
`
}

func (c *addUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "user name")
	f.StringVar(&c.address, "address", "", "postal address")
	f.StringVar(&c.phone, "phone", "", "optional phone number")
	f.StringVar(&c.deposit, "deposit", "", "optional opening deposit")
}

func (c *addUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(args, func(env *Env, svc *finance.Service) error {
		id, err := svc.AddUser(ctx, c.name, c.address, c.phone)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Out, "User added successfully with ID %d.\n", id)

		if c.deposit == "" {
			return nil
		}
		amount, err := parseAmount(c.deposit)
		if err != nil {
			return fmt.Errorf("%w: invalid amount %q", finance.ErrValidation, c.deposit)
		}
		balance, err := svc.Deposit(ctx, id, amount)
		if err != nil {
			return err
		}
		printBalance(env.Out, id, balance, env.Currency)
		return nil
	})
}

type updateUserCmd struct {
	id      int64
	name    string
	address string
	phone   string
}

func (*updateUserCmd) Name() string     { return "update-user" }
func (*updateUserCmd) Synopsis() string { return "replace a user's name, address and phone" }
func (*updateUserCmd) Usage() string {
	return `update-user -id <user-id> -name <name> -address <address> [-phone <phone>]

  Overwrites the user's details. The user ID never changes.
`
}

func (c *updateUserCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "user ID")
	f.StringVar(&c.name, "name", "", "user name")
	f.StringVar(&c.address, "address", "", "postal address")
	f.StringVar(&c.phone, "phone", "", "optional phone number")
}

func (c *updateUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(args, func(env *Env, svc *finance.Service) error {
		if err := svc.UpdateUser(ctx, c.id, c.name, c.address, c.phone); err != nil {
			return err
		}
		fmt.Fprintln(env.Out, "User updated successfully.")
		return nil
	})
}

type deleteUserCmd struct {
	id int64
}

func (*deleteUserCmd) Name() string     { return "delete-user" }
func (*deleteUserCmd) Synopsis() string { return "delete a user and their whole ledger" }
func (*deleteUserCmd) Usage() string {
	return `delete-user -id <user-id>

  Deletes the user and every transaction they recorded. This cannot be undone.
`
}

func (c *deleteUserCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "user ID")
}

func (c *deleteUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(args, func(env *Env, svc *finance.Service) error {
		if err := svc.DeleteUser(ctx, c.id); err != nil {
			return err
		}
		fmt.Fprintln(env.Out, "User and associated transactions deleted successfully.")
		return nil
	})
}

// movementCmd is shared by deposit and withdraw.
type movementCmd struct {
	id     int64
	amount string
}

func (c *movementCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "user ID")
	f.StringVar(&c.amount, "amount", "", "amount, positive, at most two decimals")
}

func (c *movementCmd) execute(ctx context.Context, args []interface{}, verb string, apply func(*finance.Service) movement) subcommands.ExitStatus {
	return run(args, func(env *Env, svc *finance.Service) error {
		amount, err := parseAmount(c.amount)
		if err != nil {
			return fmt.Errorf("%w: invalid amount %q", finance.ErrValidation, c.amount)
		}
		balance, err := apply(svc)(ctx, c.id, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Out, "%s successful.\n", verb)
		printBalance(env.Out, c.id, balance, env.Currency)
		return nil
	})
}

type movement func(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

type depositCmd struct{ movementCmd }

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "record a deposit" }
func (*depositCmd) Usage() string {
	return `deposit -id <user-id> -amount <amount>
`
}

func (c *depositCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return c.execute(ctx, args, "Deposit", func(s *finance.Service) movement { return s.Deposit })
}

type withdrawCmd struct{ movementCmd }

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "record a withdrawal if the balance covers it" }
func (*withdrawCmd) Usage() string {
	return `withdraw -id <user-id> -amount <amount>

  Nothing is recorded when the balance is lower than the amount.
`
}

func (c *withdrawCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return c.execute(ctx, args, "Withdrawal", func(s *finance.Service) movement { return s.Withdraw })
}

type balanceCmd struct {
	id int64
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "show a user's balance" }
func (*balanceCmd) Usage() string {
	return `balance -id <user-id>
`
}

func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "user ID")
}

func (c *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(args, func(env *Env, svc *finance.Service) error {
		balance, err := svc.Balance(ctx, c.id)
		if err != nil {
			return err
		}
		printBalance(env.Out, c.id, balance, env.Currency)
		return nil
	})
}

type historyCmd struct {
	id int64
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list a user's transactions" }
func (*historyCmd) Usage() string {
	return `history -id <user-id>
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "user ID")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(args, func(env *Env, svc *finance.Service) error {
		entries, err := svc.History(ctx, c.id)
		if err != nil {
			return err
		}
		printHistory(env.Out, entries, env.Currency)
		return nil
	})
}

type menuCmd struct{}

func (*menuCmd) Name() string     { return "menu" }
func (*menuCmd) Synopsis() string { return "run the interactive menu" }
func (*menuCmd) Usage() string {
	return `menu

  Starts the interactive text menu.
`
}
func (*menuCmd) SetFlags(*flag.FlagSet) {}

func (c *menuCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(args, func(env *Env, svc *finance.Service) error {
		return NewMenu(svc, env.In, env.Out, env.Currency).Run(ctx)
	})
}

// RunMenu starts the menu the same way the menu subcommand does.
func RunMenu(ctx context.Context, env *Env) subcommands.ExitStatus {
	return (&menuCmd{}).Execute(ctx, nil, env)
}
