// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/sitestats/internal/sitestats"
)

func RunDBCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}

	cmd.AddCommand(runDBPruneCommand())
	return cmd
}

func runDBPruneCommand() *cobra.Command {
	var (
		configDir string
		before    string
		keepDays  int
		domain    string
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots, or every snapshot of one site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			set := 0
			for _, v := range []bool{before != "", keepDays > 0, domain != ""} {
				if v {
					set++
				}
			}
			if set != 1 {
				return errors.New("set exactly one of --before, --keep-days or --domain")
			}

			if keepDays > 0 {
				before = sitestats.FormatDay(time.Now().AddDate(0, 0, -keepDays))
			}
			if before != "" {
				if _, ok := sitestats.PreviousDay(before); !ok {
					return errors.Errorf("--before must be YYYY-MM-DD, got %q", before)
				}
			}

			a, err := newApp(cmd.Context(), configDir, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close resources")
				}
			}()

			var deleted int64
			if domain != "" {
				deleted, err = a.snapshots.DeleteDomain(cmd.Context(), domain)
			} else {
				deleted, err = a.snapshots.DeleteBefore(cmd.Context(), before)
			}
			if err != nil {
				return errors.Wrap(err, "prune snapshots")
			}

			if domain != "" {
				cmd.Printf("Deleted %d snapshot(s) of %s\n", deleted, domain)
			} else {
				cmd.Printf("Deleted %d snapshot(s) before %s\n", deleted, before)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configDir)
	cmd.Flags().StringVar(&before, "before", "", "Delete snapshots dated before this day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "Delete snapshots older than this many days")
	cmd.Flags().StringVar(&domain, "domain", "", "Delete every snapshot of this site")

	return cmd
}
