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

// Package report prints the plugins found by a scan of LADSPA modules.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BowmanRA/mistomp/pkg/ladspa"
	"github.com/BowmanRA/mistomp/pkg/loader"
)

// DefaultSampleRate is used to compute the default value of the control
// ports whose range depends on the sample rate.
const DefaultSampleRate = 48000

var (
	colorTitle = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	colorError = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
)

// Renderer writes reports to a terminal or a plain writer. Colors are only
// used when the writer is a terminal that supports them.
type Renderer struct {
	w          io.Writer
	SampleRate uint32

	module lipgloss.Style
	plugin lipgloss.Style
	detail lipgloss.Style
	port   lipgloss.Style
	err    lipgloss.Style
}

func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		w:          w,
		SampleRate: DefaultSampleRate,
		module:     r.NewStyle().Bold(true).Foreground(colorTitle),
		plugin:     r.NewStyle().Bold(true).PaddingLeft(2),
		detail:     r.NewStyle().PaddingLeft(4).Foreground(colorMuted),
		port:       r.NewStyle().PaddingLeft(4),
		err:        r.NewStyle().PaddingLeft(2).Foreground(colorError),
	}
}

// PortType describes the direction and kind of a port, for instance
// "Audio (Input)".
func PortType(p ladspa.Port) string {
	if !p.Valid() {
		return "Unknown Type"
	}
	return fmt.Sprintf("%s (%s)", p.Kind, p.Direction)
}

// Modules writes one section per module followed by a summary line.
func (r *Renderer) Modules(reports []loader.ModuleReport) error {
	var b strings.Builder
	plugins, failed := 0, 0
	for _, m := range reports {
		b.WriteString(r.module.Render(m.Path))
		b.WriteByte('\n')
		for _, d := range m.Descriptors {
			r.descriptor(&b, d)
		}
		plugins += len(m.Descriptors)
		if m.Err != nil {
			failed++
			b.WriteString(r.err.Render("error: " + m.Err.Error()))
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "Found %d plugins in %d modules", plugins, len(reports))
	if failed > 0 {
		fmt.Fprintf(&b, " (%d with errors)", failed)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Descriptor writes the description of a single plugin.
func (r *Renderer) Descriptor(d *ladspa.Descriptor) error {
	var b strings.Builder
	r.descriptor(&b, d)
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) descriptor(b *strings.Builder, d *ladspa.Descriptor) {
	b.WriteString(r.plugin.Render(d.Name))
	b.WriteByte('\n')
	r.line(b, r.detail, "ID: %d, Label: %s", d.UniqueID, d.Label)
	r.line(b, r.detail, "Maker: %s", d.Maker)
	if d.Properties.Has(ladspa.PropertyHardRTCapable) {
		r.line(b, r.detail, "Ports: %d, hard realtime capable", d.PortCount)
	} else {
		r.line(b, r.detail, "Ports: %d", d.PortCount)
	}
	for _, p := range d.Ports() {
		s := fmt.Sprintf("Port %d - %s: %s", p.Index, p.Name, PortType(p))
		if p.IsControlInput() {
			if v, ok := p.Hint.Default(r.SampleRate); ok {
				s += fmt.Sprintf(", default %g", v)
			}
		}
		r.line(b, r.port, "%s", s)
	}
}

func (r *Renderer) line(b *strings.Builder, style lipgloss.Style, format string, args ...any) {
	b.WriteString(style.Render(fmt.Sprintf(format, args...)))
	b.WriteByte('\n')
}
