package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/zylofm/internal/auth"
	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
	"github.com/desertthunder/zylofm/internal/tasks"
)

// UsersCreate creates a credentials account with any role, e.g. the first admin.
func (r *Runner) UsersCreate(ctx context.Context, cmd *cli.Command) error {
	role, err := models.ParseRole(cmd.String("role"))
	if err != nil {
		return err
	}

	store, err := r.migratedStore()
	if err != nil {
		return err
	}

	email := cmd.String("email")
	name := cmd.String("name")
	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(shared.NormalizeEmail(email), "@")
	}

	accounts := tasks.NewAccounts(store.Users, auth.NewTokenIssuerFromConfig(r.config.Auth), r.logger)
	user, err := accounts.CreateUser(ctx, email, name, cmd.String("password"), role)
	if err != nil {
		return err
	}

	return r.writePlain("✓ Created %s %s (%s)\n", user.Role, user.Email, user.ID)
}

// UsersList prints accounts as a table or JSON.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{
		"search": cmd.String("search"),
		"limit":  int(cmd.Int("limit")),
	}
	if value := cmd.String("role"); value != "" {
		role, err := models.ParseRole(value)
		if err != nil {
			return err
		}
		criteria["role"] = role
	}

	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	users, err := store.Users.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(users, cmd.Bool("pretty"))
	}

	if len(users) == 0 {
		return r.writePlain("No users found\n")
	}

	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tPROVIDER\tJOINED")
	for _, user := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			user.ID, user.Email, user.Name, user.Role, user.Provider, user.CreatedAt.Format("2006-01-02"))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// UsersRole changes the role of the account with the given email.
func (r *Runner) UsersRole(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if email == "" {
		return fmt.Errorf("%w: email is required", shared.ErrMissingArgument)
	}
	role, err := models.ParseRole(cmd.StringArg("role"))
	if err != nil {
		return err
	}

	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	actor, err := r.reviewer(store, cmd.String("as"))
	if err != nil {
		return err
	}
	target, err := store.Users.GetByEmail(shared.NormalizeEmail(email))
	if err != nil {
		return err
	}

	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	user, err := tasks.NewModerator(store, r.logger).SetRole(ctx, actorID, target.ID, role)
	if err != nil {
		return err
	}

	return r.writePlain("✓ %s is now %s\n", user.Email, user.Role)
}
