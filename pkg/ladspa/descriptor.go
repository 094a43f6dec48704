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

import (
	"fmt"
	"strings"
)

// Properties is the LADSPA_Properties bitfield of a plugin.
type Properties int32

const (
	PropertyRealtime      Properties = 0x1
	PropertyInplaceBroken Properties = 0x2
	PropertyHardRTCapable Properties = 0x4
)

// Has returns true if all the bits of p2 are set.
func (p Properties) Has(p2 Properties) bool {
	return p&p2 == p2
}

// FunctionTable holds the native addresses of the plugin lifecycle
// functions. A zero address means the plugin does not provide the function.
type FunctionTable struct {
	Instantiate      uintptr
	ConnectPort      uintptr
	Activate         uintptr
	Run              uintptr
	RunAdding        uintptr
	SetRunAddingGain uintptr
	Deactivate       uintptr
	Cleanup          uintptr
}

// Descriptor is an immutable snapshot of a native LADSPA_Descriptor.
//
// The descriptor does not own native memory, but Address and the function
// addresses are only meaningful while the module it was read from stays
// loaded.
type Descriptor struct {
	// Address is the native address of the descriptor, which must be passed
	// back to the plugin's instantiate function.
	Address uintptr

	UniqueID   uint64
	Label      string
	Name       string
	Maker      string
	Copyright  string
	Properties Properties

	PortCount       uint32
	PortDescriptors []PortDescriptor
	PortNames       []string
	// RangeHints is nil if the plugin does not provide range hints.
	RangeHints []RangeHint

	Functions FunctionTable
}

// Port returns a view over the i-th port. It panics if i is out of range.
func (d *Descriptor) Port(i uint32) Port {
	mask := d.PortDescriptors[i]
	dir, kind := ClassifyPort(mask)
	p := Port{
		Index:      i,
		Name:       d.PortNames[i],
		Descriptor: mask,
		Direction:  dir,
		Kind:       kind,
	}
	if d.RangeHints != nil {
		p.Hint = d.RangeHints[i]
	}
	return p
}

// Ports returns views over all the ports of the plugin.
func (d *Descriptor) Ports() []Port {
	res := make([]Port, 0, d.PortCount)
	for i := uint32(0); i < d.PortCount; i++ {
		res = append(res, d.Port(i))
	}
	return res
}

// PortByName returns the first port whose name matches, ignoring case.
func (d *Descriptor) PortByName(name string) (Port, bool) {
	for i := uint32(0); i < d.PortCount; i++ {
		if strings.EqualFold(d.PortNames[i], name) {
			return d.Port(i), true
		}
	}
	return Port{}, false
}

// AudioInputs returns the indices of the audio input ports.
func (d *Descriptor) AudioInputs() []uint32 {
	return d.filter(Port.IsAudioInput)
}

// AudioOutputs returns the indices of the audio output ports.
func (d *Descriptor) AudioOutputs() []uint32 {
	return d.filter(Port.IsAudioOutput)
}

// ControlInputs returns the indices of the control input ports.
func (d *Descriptor) ControlInputs() []uint32 {
	return d.filter(Port.IsControlInput)
}

func (d *Descriptor) filter(f func(Port) bool) []uint32 {
	var res []uint32
	for i := uint32(0); i < d.PortCount; i++ {
		if f(d.Port(i)) {
			res = append(res, i)
		}
	}
	return res
}

// Validate returns a non-nil error wrapping ErrMalformedDescriptor if the
// descriptor is not consistent, for instance when a port does not have
// exactly one direction and one kind.
func (d *Descriptor) Validate() error {
	if uint32(len(d.PortDescriptors)) != d.PortCount || uint32(len(d.PortNames)) != d.PortCount {
		return fmt.Errorf("%w: port arrays do not match port count %d", ErrMalformedDescriptor, d.PortCount)
	}
	if d.RangeHints != nil && uint32(len(d.RangeHints)) != d.PortCount {
		return fmt.Errorf("%w: range hints do not match port count %d", ErrMalformedDescriptor, d.PortCount)
	}
	var bad []string
	for _, p := range d.Ports() {
		if !p.Valid() {
			bad = append(bad, fmt.Sprintf("%d (%s)", p.Index, p.Descriptor))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: invalid port descriptors: %s", ErrMalformedDescriptor, strings.Join(bad, ", "))
	}
	return nil
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s (%d, %s)", d.Name, d.UniqueID, d.Label)
}
