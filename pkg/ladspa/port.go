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

package ladspa

import "strings"

// PortDescriptor is the LADSPA_PortDescriptor bitfield of a single port.
type PortDescriptor uint32

// Port descriptor bits. Input/Output and Control/Audio are mutually
// exclusive pairs.
const (
	PortInput   PortDescriptor = 0x1
	PortOutput  PortDescriptor = 0x2
	PortControl PortDescriptor = 0x4
	PortAudio   PortDescriptor = 0x8
)

// IsInput returns true if the input bit is set.
func (p PortDescriptor) IsInput() bool { return p&PortInput != 0 }

// IsOutput returns true if the output bit is set.
func (p PortDescriptor) IsOutput() bool { return p&PortOutput != 0 }

// IsControl returns true if the control bit is set.
func (p PortDescriptor) IsControl() bool { return p&PortControl != 0 }

// IsAudio returns true if the audio bit is set.
func (p PortDescriptor) IsAudio() bool { return p&PortAudio != 0 }

func (p PortDescriptor) String() string {
	var parts []string
	if p.IsInput() {
		parts = append(parts, "input")
	}
	if p.IsOutput() {
		parts = append(parts, "output")
	}
	if p.IsControl() {
		parts = append(parts, "control")
	}
	if p.IsAudio() {
		parts = append(parts, "audio")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Direction is the data flow direction of a port, as seen by the plugin.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionInput
	DirectionOutput
)

func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "Input"
	case DirectionOutput:
		return "Output"
	default:
		return "Unknown"
	}
}

// Kind tells whether a port carries a block of samples or a single value.
type Kind int

const (
	KindUnknown Kind = iota
	KindAudio
	KindControl
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "Audio"
	case KindControl:
		return "Control"
	default:
		return "Unknown"
	}
}

// ClassifyPort splits a port descriptor into its direction and kind. When
// a mutually exclusive pair has none or both of its bits set, the
// corresponding value is reported as unknown.
func ClassifyPort(mask PortDescriptor) (Direction, Kind) {
	dir := DirectionUnknown
	switch {
	case mask.IsInput() && !mask.IsOutput():
		dir = DirectionInput
	case mask.IsOutput() && !mask.IsInput():
		dir = DirectionOutput
	}

	kind := KindUnknown
	switch {
	case mask.IsAudio() && !mask.IsControl():
		kind = KindAudio
	case mask.IsControl() && !mask.IsAudio():
		kind = KindControl
	}
	return dir, kind
}

// Port is a view over one position of a Descriptor's port arrays.
type Port struct {
	Index      uint32
	Name       string
	Descriptor PortDescriptor
	Direction  Direction
	Kind       Kind
	Hint       RangeHint
}

// Valid returns true if the port has exactly one direction and one kind.
func (p Port) Valid() bool {
	return p.Direction != DirectionUnknown && p.Kind != KindUnknown
}

// IsAudioInput returns true for a well formed audio input port.
func (p Port) IsAudioInput() bool {
	return p.Kind == KindAudio && p.Direction == DirectionInput
}

// IsAudioOutput returns true for a well formed audio output port.
func (p Port) IsAudioOutput() bool {
	return p.Kind == KindAudio && p.Direction == DirectionOutput
}

// IsControlInput returns true for a well formed control input port.
func (p Port) IsControlInput() bool {
	return p.Kind == KindControl && p.Direction == DirectionInput
}
