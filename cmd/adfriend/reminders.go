package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/adfriend/reminders"
)

// newRemindersCmd manages reminders through the message API, so it talks
// to a remote reminder service when one is configured.
func newRemindersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "List and add reminders",
	}
	cmd.AddCommand(newRemindersListCmd(opts), newRemindersAddCmd(opts))
	return cmd
}

func newRemindersListCmd(opts *rootOptions) *cobra.Command {
	var today bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), opts, func(c *reminders.Client) error {
				fetch := c.AllReminders
				if today {
					fetch = c.TodayReminders
				}
				list, err := fetch(cmd.Context())
				if err != nil {
					return err
				}
				return printReminders(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().BoolVar(&today, "today", false, "only reminders due today")
	return cmd
}

func newRemindersAddCmd(opts *rootOptions) *cobra.Command {
	var at string
	var days []string
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Save a new reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), opts, func(c *reminders.Client) error {
				r, err := c.Save(cmd.Context(), reminders.Input{Text: args[0], RemindAt: at, Days: days})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), r.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "time of day, HH:MM")
	cmd.Flags().StringSliceVar(&days, "days", nil, "day codes (M,T,W,TH,FR,SA,SU); empty for one-time")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func withClient(ctx context.Context, opts *rootOptions, fn func(*reminders.Client) error) error {
	a, err := newApp(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.client)
}

func printReminders(w io.Writer, list []reminders.Reminder) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAT\tDAYS\tPAUSED\tTEXT")
	for _, r := range list {
		days := strings.Join(r.Days, ",")
		if days == "" {
			days = "once"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.ID, r.RemindAt, days, r.IsPaused, r.Text)
	}
	return tw.Flush()
}
