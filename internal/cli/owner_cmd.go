package cli

import (
	"fmt"

	"github.com/alexanderramin/tempo/internal/cli/formatter"
	"github.com/alexanderramin/tempo/internal/contract"
	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newOwnerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage tracked owners on the session store",
	}
	cmd.AddCommand(
		newOwnerAddCmd(app),
		newOwnerListCmd(app),
		newOwnerShowCmd(app),
		newOwnerRemoveCmd(app),
	)
	return cmd
}

func newOwnerAddCmd(app *App) *cobra.Command {
	var name, parent string

	cmd := &cobra.Command{
		Use:   "add <kind> <id>",
		Short: "Register a task, subtask or employee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := contract.CreateOwnerRequest{
				Kind:     args[0],
				ID:       args[1],
				Name:     name,
				ParentID: parent,
			}
			if _, err := req.ToDomain(); err != nil {
				return err
			}
			o, err := app.storeClient().CreateOwner(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Added %s %s\n", formatter.KindBadge(o.Kind), formatter.Bold(o.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the id)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id (required for subtasks)")
	return cmd
}

func newOwnerListCmd(app *App) *cobra.Command {
	var kind kindFlag

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List owners with their tracked totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := kind.kinds()
			store := app.storeClient()
			var owners []*domain.Owner
			for _, k := range kinds {
				list, err := store.ListOwners(cmd.Context(), k)
				if err != nil {
					return err
				}
				owners = append(owners, list...)
			}
			fmt.Fprint(app.Out, formatter.FormatOwners(owners, app.Now()))
			return nil
		},
	}

	cmd.Flags().Var(&kind, "kind", "only list one kind: task, subtask or employee")
	return cmd
}

func newOwnerShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := app.storeClient()
			task, err := store.GetOwner(cmd.Context(), domain.OwnerRef{Kind: domain.OwnerTask, ID: args[0]})
			if err != nil {
				return err
			}
			subtasks := make([]*domain.Owner, 0, len(task.SubtaskIDs))
			for _, id := range task.SubtaskIDs {
				s, err := store.GetOwner(cmd.Context(), domain.OwnerRef{Kind: domain.OwnerSubtask, ID: id})
				if err != nil {
					return err
				}
				subtasks = append(subtasks, s)
			}
			fmt.Fprint(app.Out, formatter.FormatTaskTree(task, subtasks, app.Now()))
			return nil
		},
	}
}

func newOwnerRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <kind> <id>",
		Short: "Delete an owner and its session history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args)
			if err != nil {
				return err
			}
			if err := app.storeClient().DeleteOwner(cmd.Context(), ref); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Removed %s\n", ref)
			return nil
		},
	}
}

// kindFlag is an owner kind validated when the flag is parsed.
type kindFlag struct {
	kind domain.OwnerKind
}

var _ pflag.Value = (*kindFlag)(nil)

func (f *kindFlag) String() string { return string(f.kind) }

func (f *kindFlag) Set(s string) error {
	k, err := domain.ParseOwnerKind(s)
	if err != nil {
		return err
	}
	f.kind = k
	return nil
}

func (f *kindFlag) Type() string { return "kind" }

// kinds is every kind when the flag was not set.
func (f *kindFlag) kinds() []domain.OwnerKind {
	if f.kind == "" {
		return domain.OwnerKinds
	}
	return []domain.OwnerKind{f.kind}
}
