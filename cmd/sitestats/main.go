// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/sitestats/internal/buildinfo"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sitestats",
		Short:         "Daily upload and download statistics for private tracker accounts",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		RunServeCommand(),
		RunDigestCommand(),
		RunFillCommand(),
		RunImportCommand(),
		RunDBCommand(),
		RunVersionCommand(),
	)
	return cmd
}

func addConfigFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "config-dir", "", "Config directory or path to config.toml (defaults to the user config dir)")
}
