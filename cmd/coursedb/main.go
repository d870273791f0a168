// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// coursedb is the conversational course catalog assistant.
//
// Usage:
//
//	coursedb serve --config config.yaml
//	coursedb ask --catalog data/courses.json "online comsc classes on tuesdays"
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagCatalog string
	flagRules   string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "coursedb",
		Short: "Conversational course catalog assistant",
		Long: `coursedb answers natural-language questions about a college course
catalog: searching sections, prerequisites, instructors, schedule conflicts,
with multi-turn follow-ups within a session.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.yaml (defaults embedded)")
	root.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "path to the catalog JSON (overrides config)")
	root.PersistentFlags().StringVar(&flagRules, "rules", "", "path to a parser rules file (defaults embedded)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newAskCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
