// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func RunFillCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Copy the newest snapshot of every lagging site to the latest day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), configDir, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close resources")
				}
			}()

			result, err := a.statistics.FillForward(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "fill-forward")
			}

			if len(result.Filled) == 0 {
				cmd.Println("Every site is up to date.")
				return nil
			}
			cmd.Printf("Filled %d site(s) for %s: %s\n", len(result.Filled), result.Today, strings.Join(result.Filled, ", "))
			return nil
		},
	}

	addConfigFlag(cmd, &configDir)
	return cmd
}
