// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Savwangs/course-database/services/assistant/config"
)

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question against the catalog and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagCatalog != "" {
				cfg.Catalog.Path = flagCatalog
			}
			// One-shot runs never persist an interaction log.
			cfg.Log.Backend = "none"

			svc, _, _, interactions, _, err := buildService(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer interactions.Close()

			answer, err := svc.Ask(cmd.Context(), uuid.NewString(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			return nil
		},
	}
}
