package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"

	"savingsbuddy/internal/core"
)

// fail reports err on stderr, one line per invalid field for validation
// errors.
func (a *app) fail(err error) subcommands.ExitStatus {
	v, ok := core.AsValidation(err)
	if !ok {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fields := make([]string, 0, len(v.Fields))
	for field := range v.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(a.stderr, "%s: %s\n", field, v.Fields[field])
	}
	return subcommands.ExitFailure
}

type addUserCmd struct {
	*app
	email    string
	password string
}

func (*addUserCmd) Name() string     { return "adduser" }
func (*addUserCmd) Synopsis() string { return "create a user account" }
func (*addUserCmd) Usage() string {
	return `savingsctl [-db <path>] adduser [-email <email>] [-password <password>] <username>

  Creates a user. The password is prompted for when -password is omitted.
`
}

func (c *addUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Optional email address")
	f.StringVar(&c.password, "password", "", "Password (prompted for if omitted)")
}

func (c *addUserCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	username := f.Arg(0)

	password := c.password
	if password == "" {
		fmt.Fprint(c.stdout, "Password: ")
		p, err := c.readPassword()
		if err != nil {
			return c.fail(fmt.Errorf("read password: %w", err))
		}
		fmt.Fprint(c.stdout, "Password (again): ")
		again, err := c.readPassword()
		if err != nil {
			return c.fail(fmt.Errorf("read password: %w", err))
		}
		if p != again {
			return c.fail(errors.New("passwords do not match"))
		}
		password = p
	}

	repo, accounts, _, err := c.open()
	if err != nil {
		return c.fail(err)
	}
	defer repo.Close()

	u, err := accounts.CreateUser(ctx, username, c.email, password)
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "User %s created with ID %d\n", u.Username, u.ID)
	return subcommands.ExitSuccess
}

type delUserCmd struct {
	*app
}

func (*delUserCmd) Name() string     { return "deluser" }
func (*delUserCmd) Synopsis() string { return "delete a user and all of their records" }
func (*delUserCmd) Usage() string {
	return "savingsctl [-db <path>] deluser <username>\n"
}
func (*delUserCmd) SetFlags(*flag.FlagSet) {}

func (c *delUserCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	repo, accounts, _, err := c.open()
	if err != nil {
		return c.fail(err)
	}
	defer repo.Close()

	if err := accounts.DeleteUser(ctx, f.Arg(0)); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return c.fail(fmt.Errorf("no user named %q", f.Arg(0)))
		}
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "User %s deleted\n", f.Arg(0))
	return subcommands.ExitSuccess
}

type listUsersCmd struct {
	*app
}

func (*listUsersCmd) Name() string           { return "listusers" }
func (*listUsersCmd) Synopsis() string       { return "list user accounts" }
func (*listUsersCmd) Usage() string          { return "savingsctl [-db <path>] listusers\n" }
func (*listUsersCmd) SetFlags(*flag.FlagSet) {}

func (c *listUsersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, accounts, _, err := c.open()
	if err != nil {
		return c.fail(err)
	}
	defer repo.Close()

	users, err := accounts.ListUsers(ctx)
	if err != nil {
		return c.fail(err)
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02"))
	}
	if err := w.Flush(); err != nil {
		return c.fail(err)
	}
	return subcommands.ExitSuccess
}

type addCategoryCmd struct {
	*app
}

func (*addCategoryCmd) Name() string           { return "addcategory" }
func (*addCategoryCmd) Synopsis() string       { return "add an expense category" }
func (*addCategoryCmd) Usage() string          { return "savingsctl [-db <path>] addcategory <name>\n" }
func (*addCategoryCmd) SetFlags(*flag.FlagSet) {}

func (c *addCategoryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	repo, _, records, err := c.open()
	if err != nil {
		return c.fail(err)
	}
	defer repo.Close()

	cat, err := records.CreateCategory(ctx, f.Arg(0))
	if err != nil {
		if errors.Is(err, core.ErrDuplicate) {
			return c.fail(fmt.Errorf("category %q already exists", f.Arg(0)))
		}
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Category %s created with ID %d\n", cat.Name, cat.ID)
	return subcommands.ExitSuccess
}

type listCategoriesCmd struct {
	*app
}

func (*listCategoriesCmd) Name() string           { return "listcategories" }
func (*listCategoriesCmd) Synopsis() string       { return "list expense categories" }
func (*listCategoriesCmd) Usage() string          { return "savingsctl [-db <path>] listcategories\n" }
func (*listCategoriesCmd) SetFlags(*flag.FlagSet) {}

func (c *listCategoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	repo, _, records, err := c.open()
	if err != nil {
		return c.fail(err)
	}
	defer repo.Close()

	cats, err := records.Categories(ctx)
	if err != nil {
		return c.fail(err)
	}
	for _, cat := range cats {
		fmt.Fprintf(c.stdout, "%d\t%s\n", cat.ID, cat.Name)
	}
	return subcommands.ExitSuccess
}

type delCategoryCmd struct {
	*app
}

func (*delCategoryCmd) Name() string     { return "delcategory" }
func (*delCategoryCmd) Synopsis() string { return "delete an expense category" }
func (*delCategoryCmd) Usage() string {
	return `savingsctl [-db <path>] delcategory <id>

  Expenses in the category are kept and become uncategorized.
`
}
func (*delCategoryCmd) SetFlags(*flag.FlagSet) {}

func (c *delCategoryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(c.stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(c.stderr, "invalid category id %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}
	repo, _, records, err := c.open()
	if err != nil {
		return c.fail(err)
	}
	defer repo.Close()

	if err := records.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return c.fail(fmt.Errorf("no category with ID %d", id))
		}
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Category %d deleted\n", id)
	return subcommands.ExitSuccess
}
