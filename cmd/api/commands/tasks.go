package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmaster/tasklist/internal/client"
	"github.com/taskmaster/tasklist/internal/domain/checklist"
	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/infrastructure/config"
)

// clientOptions are shared by every tasks subcommand
type clientOptions struct {
	server  string
	token   string
	timeout time.Duration
}

// NewTasksCommand creates the client command that edits a list on a running server
func NewTasksCommand() *cobra.Command {
	opts := &clientOptions{}
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with your task list on a TaskList server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.server == "" {
				opts.server = cfg.Client.ServerURL
			}
			if opts.token == "" {
				opts.token = cfg.Client.Token
			}
			if opts.timeout <= 0 {
				opts.timeout = cfg.Client.Timeout
			}
			if opts.timeout <= 0 {
				opts.timeout = 10 * time.Second
			}
			return nil
		},
	}
	tasksCmd.PersistentFlags().StringVar(&opts.server, "server", "", "server URL (default from TASKLIST_SERVER_URL)")
	tasksCmd.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token (default from TASKLIST_TOKEN)")
	tasksCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "request timeout")

	var username, password string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token for TASKLIST_TOKEN",
		RunE: func(cmd *cobra.Command, args []string) error {
			remote := client.NewHTTPRemote(opts.server, "", opts.timeout)
			resp, err := remote.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			return nil
		},
	}
	loginCmd.Flags().StringVar(&username, "username", "", "username")
	loginCmd.Flags().StringVar(&password, "password", "", "password")

	var filter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show tasks in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := entities.ParseFilter(filter)
			if err != nil {
				return err
			}
			return opts.run(cmd, f, nil)
		},
	}
	listCmd.Flags().StringVar(&filter, "filter", "all", "all, doing or done")

	var pinned, asChecklist bool
	addCmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task at the top of the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			data := entities.TextData(text)
			if asChecklist {
				data = entities.ChecklistData(checklist.FromText(strings.ReplaceAll(text, ";", "\n")))
			}
			return opts.run(cmd, entities.FilterAll, func(s *client.Store) error {
				_, err := s.Create(data, pinned)
				return err
			})
		},
	}
	addCmd.Flags().BoolVar(&pinned, "pin", false, "create the task pinned")
	addCmd.Flags().BoolVar(&asChecklist, "checklist", false, "split the text on ';' into checklist items")

	moveCmd := &cobra.Command{
		Use:   "move <task> <position>",
		Short: "Move a task to a 1-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position: %w", err)
			}
			return opts.withTask(cmd, args[0], func(s *client.Store, id string) error {
				_, err := s.Move(id, pos-1)
				return err
			})
		},
	}

	moveByCmd := &cobra.Command{
		Use:   "shift <task> <step>",
		Short: "Move a task up (negative) or down (positive)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			step, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("step: %w", err)
			}
			return opts.withTask(cmd, args[0], func(s *client.Store, id string) error {
				_, err := s.MoveBy(id, step)
				return err
			})
		},
	}

	pinCmd := &cobra.Command{
		Use:   "pin <task>",
		Short: "Pin or unpin a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTask(cmd, args[0], func(s *client.Store, id string) error {
				_, err := s.TogglePin(id)
				return err
			})
		},
	}

	doneCmd := &cobra.Command{
		Use:   "done <task>",
		Short: "Mark a task done or doing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTask(cmd, args[0], func(s *client.Store, id string) error {
				return s.ToggleDone(id)
			})
		},
	}

	editCmd := &cobra.Command{
		Use:   "edit <task> <text>",
		Short: "Replace a text task's content",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTask(cmd, args[0], func(s *client.Store, id string) error {
				return s.EditText(id, strings.Join(args[1:], " "))
			})
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <task>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTask(cmd, args[0], func(s *client.Store, id string) error {
				return s.Delete(id)
			})
		},
	}

	checklistCmd := &cobra.Command{
		Use:   "checklist <task> on|off",
		Short: "Turn a task into a checklist or back into text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[1] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}
			return opts.withTask(cmd, args[0], func(s *client.Store, id string) error {
				return s.SetChecklistMode(id, enabled)
			})
		},
	}

	resequenceCmd := &cobra.Command{
		Use:   "resequence",
		Short: "Renumber positions to 1..n",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			remote := client.NewHTTPRemote(opts.server, opts.token, opts.timeout)
			res, err := remote.Resequence(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (changed: %t)\n", res.Version, res.Changed)
			return nil
		},
	}

	var oldPassword, newPassword string
	passwdCmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" {
				return errors.New("no token; run `tasklist tasks login` and set TASKLIST_TOKEN")
			}
			remote := client.NewHTTPRemote(opts.server, opts.token, opts.timeout)
			if err := remote.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
	passwdCmd.Flags().StringVar(&oldPassword, "old", "", "current password")
	passwdCmd.Flags().StringVar(&newPassword, "new", "", "new password, at least 8 characters")

	tasksCmd.AddCommand(loginCmd, passwdCmd, listCmd, addCmd, moveCmd, moveByCmd, pinCmd, doneCmd,
		editCmd, rmCmd, checklistCmd, newItemCommand(opts), resequenceCmd)
	return tasksCmd
}

func newItemCommand(opts *clientOptions) *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Edit checklist items; items are addressed by 1-based index or id",
	}

	itemCmd.AddCommand(&cobra.Command{
		Use:   "done <task> <item>",
		Short: "Complete or restore an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withItem(cmd, args[0], args[1], func(s *client.Store, id, itemID string) error {
				return s.ToggleItem(id, itemID)
			})
		},
	}, &cobra.Command{
		Use:   "add <task> <after-item> [text]",
		Short: "Insert an item after another",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withItem(cmd, args[0], args[1], func(s *client.Store, id, itemID string) error {
				added, err := s.InsertItemAfter(id, itemID)
				if err != nil || len(args) == 2 {
					return err
				}
				return s.EditItem(id, added, strings.Join(args[2:], " "))
			})
		},
	}, &cobra.Command{
		Use:   "edit <task> <item> <text>",
		Short: "Change an item's text",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withItem(cmd, args[0], args[1], func(s *client.Store, id, itemID string) error {
				return s.EditItem(id, itemID, strings.Join(args[2:], " "))
			})
		},
	}, &cobra.Command{
		Use:   "move <task> <item> <index>",
		Short: "Move an item to a 1-based index",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			return opts.withItem(cmd, args[0], args[1], func(s *client.Store, id, itemID string) error {
				return s.MoveItem(id, itemID, idx-1)
			})
		},
	}, &cobra.Command{
		Use:   "rm <task> <item>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withItem(cmd, args[0], args[1], func(s *client.Store, id, itemID string) error {
				return s.DeleteItem(id, itemID)
			})
		},
	})
	return itemCmd
}

// run loads the list, applies edit if any, waits for the server and prints the list.
func (o *clientOptions) run(cmd *cobra.Command, filter entities.Filter, edit func(*client.Store) error) error {
	if o.token == "" {
		return errors.New("no token; run `tasklist tasks login` and set TASKLIST_TOKEN")
	}
	store := client.NewStore(client.NewHTTPRemote(o.server, o.token, o.timeout), client.Options{})
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*o.timeout)
	defer cancel()
	if err := store.Flush(ctx); err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	if edit != nil {
		if err := edit(store); err != nil {
			return err
		}
		if err := store.Flush(ctx); err != nil {
			return fmt.Errorf("server rejected the change, list reloaded: %w", err)
		}
	}

	printTasks(cmd.OutOrStdout(), store.View(filter), store.Version())
	return nil
}

func (o *clientOptions) withTask(cmd *cobra.Command, ref string, edit func(*client.Store, string) error) error {
	return o.run(cmd, entities.FilterAll, func(s *client.Store) error {
		id, err := resolveTask(s.Tasks(), ref)
		if err != nil {
			return err
		}
		return edit(s, id)
	})
}

func (o *clientOptions) withItem(cmd *cobra.Command, taskRef, itemRef string, edit func(*client.Store, string, string) error) error {
	return o.withTask(cmd, taskRef, func(s *client.Store, id string) error {
		for _, t := range s.Tasks() {
			if t.ID != id {
				continue
			}
			itemID, err := resolveItem(t.Data.Items(), itemRef)
			if err != nil {
				return err
			}
			return edit(s, id, itemID)
		}
		return entities.ErrTaskNotFound
	})
}

// resolveTask accepts a 1-based display index, a full id or a unique id prefix.
func resolveTask(tasks []*entities.Task, ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(tasks) {
			return "", fmt.Errorf("task %d: %w", n, entities.ErrTaskNotFound)
		}
		return tasks[n-1].ID, nil
	}
	var match string
	for _, t := range tasks {
		if t.ID == ref {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("task prefix %q is ambiguous", ref)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("task %s: %w", ref, entities.ErrTaskNotFound)
	}
	return match, nil
}

func resolveItem(items []entities.ListItem, ref string) (string, error) {
	if len(items) == 0 {
		return "", entities.ErrNotChecklist
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return "", fmt.Errorf("item %d: %w", n, entities.ErrItemNotFound)
		}
		return items[n-1].ID, nil
	}
	for _, item := range items {
		if item.ID == ref || strings.HasPrefix(item.ID, ref) {
			return item.ID, nil
		}
	}
	return "", fmt.Errorf("item %s: %w", ref, entities.ErrItemNotFound)
}

func printTasks(out io.Writer, tasks []*entities.Task, version int64) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tSTATE\tTASK")
	for i, t := range tasks {
		state := " "
		if t.Pinned {
			state = "^"
		}
		if t.Done {
			state += "x"
		} else {
			state += " "
		}

		id := t.ID
		if len(id) > 8 {
			id = id[:8]
		}

		if !t.IsChecklist() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, id, state, firstLine(t.Data.Text()))
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t\n", i+1, id, state)
		for j, item := range t.Data.Items() {
			mark := "[ ]"
			if item.Done {
				mark = "[x]"
			}
			fmt.Fprintf(w, "\t\t\t  %d. %s %s\n", j+1, mark, item.Data)
		}
	}
	fmt.Fprintf(w, "\t\t\t(version %d)\n", version)
	w.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
