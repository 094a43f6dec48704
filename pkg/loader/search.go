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

package loader

import (
	"os"
	"path/filepath"
)

// PathEnv is the environment variable listing LADSPA plugin directories.
const PathEnv = "LADSPA_PATH"

// DefaultDirs are the directories searched after the configured ones.
var DefaultDirs = []string{"/usr/local/lib/ladspa", "/usr/lib/ladspa"}

// SearchPath returns the plugin directories in search order: the
// configured directory, the entries of LADSPA_PATH, then DefaultDirs.
// Empty and duplicate entries are removed.
func SearchPath(configured string) []string {
	var dirs []string
	seen := map[string]bool{}
	add := func(d string) {
		if d == "" {
			return
		}
		d = filepath.Clean(d)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	add(configured)
	for _, d := range filepath.SplitList(os.Getenv(PathEnv)) {
		add(d)
	}
	for _, d := range DefaultDirs {
		add(d)
	}
	return dirs
}
