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
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile, logLevel, listDir, listExt = "", "", "", ""
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mistomp dev")
	assert.Contains(t, out, "commit: none")
}

func TestListEmptyDir(t *testing.T) {
	out, err := execute(t, "list", "--dir", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Found 0 plugins in 0 modules\n", out)
}

func TestListMissingDir(t *testing.T) {
	_, err := execute(t, "list", "--dir", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestListReportsBrokenModules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.so"), []byte("not a module"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), nil, 0o644))

	out, err := execute(t, "list", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "broken.so"))
	assert.NotContains(t, out, "readme.txt")
	assert.Contains(t, out, "Found 0 plugins in 1 modules (1 with errors)")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mistomp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host:\n  clientName: pedal\n"), 0o644))
	t.Cleanup(func() { cfgFile, logLevel = "", "" })

	cfgFile, logLevel = path, "debug"
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "pedal", cfg.Host.ClientName)
	assert.Equal(t, "debug", cfg.Log.Level)

	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = loadConfig()
	assert.Error(t, err)
}

func TestRunRequiresPlugin(t *testing.T) {
	_, err := execute(t, "run", "--log-level", "error")
	assert.ErrorContains(t, err, "no plugin selected")
}

func TestRlimitCheck(t *testing.T) {
	c := rlimitCheck([]process.RlimitStat{
		{Resource: process.RLIMIT_RTPRIO, Soft: 95},
		{Resource: process.RLIMIT_MEMLOCK, Soft: math.MaxUint64},
	})
	assert.Equal(t, checkOK, c.status)
	assert.Equal(t, "realtime priority up to 95, locked memory unlimited", c.detail)

	c = rlimitCheck([]process.RlimitStat{
		{Resource: process.RLIMIT_RTPRIO, Soft: 0},
		{Resource: process.RLIMIT_MEMLOCK, Soft: 65536},
	})
	assert.Equal(t, checkWarn, c.status)
	assert.Contains(t, c.detail, "RLIMIT_RTPRIO is 0")
	assert.Contains(t, c.detail, "locked memory limited to 65536")

	assert.Equal(t, checkWarn, rlimitCheck(nil).status)
}

func TestCheckLayout(t *testing.T) {
	assert.Equal(t, checkOK, checkLayout().status)
}

func TestCheckPluginDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.so"), nil, 0o644))

	res := checkPluginDirs([]string{filepath.Join(dir, "missing"), dir}, ".so")
	require.Len(t, res, 1)
	assert.Equal(t, checkOK, res[0].status)
	assert.Equal(t, "1 modules", res[0].detail)

	res = checkPluginDirs([]string{filepath.Join(dir, "missing")}, ".so")
	require.Len(t, res, 1)
	assert.Equal(t, checkWarn, res[0].status)
}

func TestPrintChecks(t *testing.T) {
	var buf bytes.Buffer
	failed := printChecks(&buf, []check{
		{"a", checkOK, "fine"},
		{"b", checkFail, "broken"},
	})
	assert.Equal(t, 1, failed)
	assert.Contains(t, buf.String(), "[ok]")
	assert.Contains(t, buf.String(), "a: fine\n")
	assert.Contains(t, buf.String(), "[fail] b: broken\n")
}
