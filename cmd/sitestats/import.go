// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/sitestats"
)

// importRecord is one snapshot in an import file. JSON files parse too,
// JSON being a subset of YAML.
type importRecord struct {
	sitestats.UsageSnapshot `yaml:",inline"`
	UpdatedTime             string `yaml:"updatedTime,omitempty"`
}

func RunImportCommand() *cobra.Command {
	var (
		configDir string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import snapshots from YAML or JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make(map[string][]importRecord, len(args))
			for _, path := range args {
				records, err := readImportFile(path)
				if err != nil {
					return err
				}
				for i := range records {
					data := records[i].siteUserData()
					if err := data.Validate(); err != nil {
						return errors.Wrapf(err, "%s: record %d", path, i+1)
					}
				}
				files[path] = records
			}

			if dryRun {
				for _, path := range args {
					cmd.Printf("%s: %d valid snapshot(s)\n", path, len(files[path]))
				}
				return nil
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

			for _, path := range args {
				for i := range files[path] {
					if _, err := a.statistics.RecordSnapshot(cmd.Context(), files[path][i].siteUserData()); err != nil {
						return errors.Wrapf(err, "%s: record %d", path, i+1)
					}
				}
				cmd.Printf("Imported %d snapshot(s) from %s\n", len(files[path]), path)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configDir)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the files without writing to the database")

	return cmd
}

func (r importRecord) siteUserData() *models.SiteUserData {
	return &models.SiteUserData{UsageSnapshot: r.UsageSnapshot, UpdatedTime: r.UpdatedTime}
}

// readImportFile accepts a list of snapshots or a single snapshot.
func readImportFile(path string) ([]importRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read import file")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.Errorf("%s: file is empty", path)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, errors.Wrapf(err, "%s: parse", path)
	}
	if len(node.Content) == 0 {
		return nil, errors.Errorf("%s: file is empty", path)
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var records []importRecord
		if err := root.Decode(&records); err != nil {
			return nil, errors.Wrapf(err, "%s: decode snapshots", path)
		}
		return records, nil
	case yaml.MappingNode:
		var record importRecord
		if err := root.Decode(&record); err != nil {
			return nil, errors.Wrapf(err, "%s: decode snapshot", path)
		}
		return []importRecord{record}, nil
	default:
		return nil, errors.Errorf("%s: expected a snapshot or a list of snapshots", path)
	}
}
