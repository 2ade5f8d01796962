package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/recurrence"
)

func expandCmd() *cobra.Command {
	var (
		repeat   string
		weekdays []string
		start    string
		end      string
	)

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the dates a recurrence rule produces",
		Long: `Print every date a recurrence rule expands to, one per line.

Examples:
  fivlo expand --repeat weekly --weekdays mon,wed --start 2025-01-06 --end 2025-01-19
  fivlo expand --repeat monthly --start 2025-01-31 --end 2025-06-30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := recurrence.ParseRepeat(repeat)
			if err != nil {
				return err
			}
			days, err := calendar.ParseWeekdays(weekdays)
			if err != nil {
				return err
			}
			startsOn, err := calendar.Parse(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			rule := recurrence.Rule{Repeat: kind, Weekdays: days, StartsOn: startsOn}
			if end != "" {
				endsOn, err := calendar.Parse(end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				rule.EndsOn = &endsOn
			}

			seq, err := recurrence.NewEngine().Expand(rule)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			count := 0
			for day := range seq.All() {
				fmt.Fprintf(out, "%s %s\n", day, calendar.WeekdayCode(day.Weekday()))
				count++
			}
			fmt.Fprintf(out, "%d occurrence(s)\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&repeat, "repeat", "none", "none, daily, weekly or monthly")
	cmd.Flags().StringSliceVar(&weekdays, "weekdays", nil, "weekdays for weekly rules, e.g. mon,wed")
	cmd.Flags().StringVar(&start, "start", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last date, inclusive (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}
