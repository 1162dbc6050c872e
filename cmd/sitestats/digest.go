// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/sitestats/internal/sitestats"
)

func RunDigestCommand() *cobra.Command {
	var (
		configDir string
		mode      string
		send      bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print today's statistics digest, optionally sending it to notification targets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			notifyMode, err := sitestats.ParseNotifyMode(mode)
			if err != nil {
				return err
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

			if notifyMode == sitestats.NotifyDisabled {
				notifyMode = a.statistics.Config().NotifyMode
			}

			digest, err := a.statistics.Digest(cmd.Context(), notifyMode)
			if err != nil {
				return errors.Wrap(err, "build digest")
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(digest); err != nil {
					return errors.Wrap(err, "encode digest")
				}
			} else if digest.Empty() {
				cmd.Println("No upload or download since yesterday.")
			} else {
				cmd.Println(digest.Text())
			}

			if send {
				if err := a.statistics.SendDigest(cmd.Context(), notifyMode); err != nil {
					return errors.Wrap(err, "send digest")
				}
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configDir)
	cmd.Flags().StringVar(&mode, "mode", "", "Digest mode: inc or all (defaults to notifyType from the config)")
	cmd.Flags().BoolVar(&send, "send", false, "Deliver the digest to the enabled notification targets")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the digest as JSON")

	return cmd
}
