// SPDX-License-Identifier: Apache-2.0
/*
Copyright (C) 2026 The MiStomp Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/BowmanRA/mistomp/pkg/loader"
	"github.com/BowmanRA/mistomp/pkg/report"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the LADSPA plugins and their ports",
	Long: `List scans the plugin directories and describes every plugin found.

Without --dir, the directory of the configuration is scanned first, then
the directories of LADSPA_PATH and the default system directories.

Examples:
  mistomp list
  mistomp list --dir ./plugins --ext .so`,
	RunE: runList,
}

var (
	listDir string
	listExt string
)

func init() {
	listCmd.Flags().StringVar(&listDir, "dir", "", "scan only this directory")
	listCmd.Flags().StringVar(&listExt, "ext", "", "module file extension (default from config)")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ext := cfg.Ladspa.PluginFileExtension
	if listExt != "" {
		ext = listExt
	}
	dirs := []string{listDir}
	if listDir == "" {
		dirs = loader.SearchPath(cfg.Ladspa.PluginDirectory)
	}

	var reports []loader.ModuleReport
	for _, dir := range dirs {
		r, err := loader.Scan(dir, ext)
		if err != nil {
			// only an explicit directory must exist
			if listDir == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		reports = append(reports, r...)
	}
	return report.NewRenderer(cmd.OutOrStdout()).Modules(reports)
}
