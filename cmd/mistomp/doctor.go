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
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shirou/gopsutil/v3/cpu"
	pshost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"

	"github.com/BowmanRA/mistomp/pkg/jack"
	"github.com/BowmanRA/mistomp/pkg/loader"
)

// minMemlock is the locked memory limit below which the pinned buffers of
// the host may not be locked.
const minMemlock = 64 << 20

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the system can run the host in realtime",
	Long: `Doctor checks the JACK library, the descriptor layout of this build, the
realtime scheduling and locked memory limits of the process, and the plugin
directories.

Warnings do not prevent the host from running, failures do.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkStatus int

const (
	checkOK checkStatus = iota
	checkWarn
	checkFail
)

type check struct {
	name   string
	status checkStatus
	detail string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	checks := []check{
		checkJACK(),
		checkLayout(),
		checkRlimits(),
		checkSystem(),
	}
	checks = append(checks, checkPluginDirs(loader.SearchPath(cfg.Ladspa.PluginDirectory), cfg.Ladspa.PluginFileExtension)...)

	failed := printChecks(cmd.OutOrStdout(), checks)
	if failed > 0 {
		return fmt.Errorf("doctor found %d problems", failed)
	}
	return nil
}

func printChecks(w io.Writer, checks []check) int {
	r := lipgloss.NewRenderer(w)
	labels := map[checkStatus]string{
		checkOK:   r.NewStyle().Foreground(lipgloss.Color("2")).Render("[ok]  "),
		checkWarn: r.NewStyle().Foreground(lipgloss.Color("3")).Render("[warn]"),
		checkFail: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Render("[fail]"),
	}
	failed := 0
	for _, c := range checks {
		fmt.Fprintf(w, "%s %s: %s\n", labels[c.status], c.name, c.detail)
		if c.status == checkFail {
			failed++
		}
	}
	return failed
}

func checkJACK() check {
	if err := jack.Load(); err != nil {
		return check{"JACK library", checkFail, err.Error()}
	}
	return check{"JACK library", checkOK, "loaded"}
}

func checkLayout() check {
	if err := loader.CheckLayout(); err != nil {
		return check{"descriptor layout", checkFail, err.Error()}
	}
	return check{"descriptor layout", checkOK, "matches the C compiler"}
}

func checkRlimits() check {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return check{"resource limits", checkWarn, err.Error()}
	}
	limits, err := p.Rlimit()
	if err != nil {
		return check{"resource limits", checkWarn, err.Error()}
	}
	return rlimitCheck(limits)
}

func rlimitCheck(limits []process.RlimitStat) check {
	var rtprio, memlock *process.RlimitStat
	for i := range limits {
		switch limits[i].Resource {
		case process.RLIMIT_RTPRIO:
			rtprio = &limits[i]
		case process.RLIMIT_MEMLOCK:
			memlock = &limits[i]
		}
	}

	var problems []string
	if rtprio == nil || rtprio.Soft == 0 {
		problems = append(problems, "realtime priority not allowed (RLIMIT_RTPRIO is 0)")
	}
	if memlock != nil && memlock.Soft < minMemlock {
		problems = append(problems, fmt.Sprintf("locked memory limited to %s", formatLimit(memlock.Soft)))
	}
	if len(problems) > 0 {
		return check{"resource limits", checkWarn, strings.Join(problems, ", ")}
	}
	detail := fmt.Sprintf("realtime priority up to %s", formatLimit(rtprio.Soft))
	if memlock != nil {
		detail += fmt.Sprintf(", locked memory %s", formatLimit(memlock.Soft))
	}
	return check{"resource limits", checkOK, detail}
}

func formatLimit(v uint64) string {
	if v == math.MaxUint64 || v == math.MaxInt64 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", v)
}

func checkSystem() check {
	kernel, err := pshost.KernelVersion()
	if err != nil {
		return check{"system", checkWarn, err.Error()}
	}
	cores, err := cpu.Counts(true)
	if err != nil {
		return check{"system", checkWarn, err.Error()}
	}
	detail := fmt.Sprintf("kernel %s, %d CPUs", kernel, cores)
	if strings.Contains(kernel, "-rt") {
		detail += ", realtime kernel"
	}
	return check{"system", checkOK, detail}
}

func checkPluginDirs(dirs []string, ext string) []check {
	var res []check
	found := 0
	for _, dir := range dirs {
		modules, err := loader.Modules(dir, ext)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case err != nil:
			res = append(res, check{"plugin directory " + dir, checkWarn, err.Error()})
		default:
			found++
			res = append(res, check{"plugin directory " + dir, checkOK, fmt.Sprintf("%d modules", len(modules))})
		}
	}
	if found == 0 {
		res = append(res, check{"plugin directories", checkWarn, "none of " + strings.Join(dirs, ", ") + " exists"})
	}
	return res
}
