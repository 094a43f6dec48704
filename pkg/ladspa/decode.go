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
	"math"
)

const (
	// MaxPorts is the largest port count considered plausible.
	MaxPorts = 4096

	// MaxStringLen is the maximum number of bytes read from a plugin
	// supplied string before giving up on the terminator.
	MaxStringLen = 1024

	// NotAvailable is used for string fields set to a null pointer.
	NotAvailable = "N/A"

	// Unreadable is used for string fields whose pointer cannot be read.
	Unreadable = "<unreadable>"
)

// portDescriptorSize is sizeof(LADSPA_PortDescriptor), a C int.
const portDescriptorSize = 4

// Memory gives read access to an address space. Implementations must
// return an error wrapping ErrUnreadablePointer instead of faulting when an
// address cannot be read.
type Memory interface {
	// ReadUint reads an unsigned little or big endian integer of the given
	// width (1, 2, 4 or 8 bytes) in the byte order of the address space.
	ReadUint(addr, width uintptr) (uint64, error)

	// ReadCString reads a null terminated string of at most max bytes.
	ReadCString(addr uintptr, max int) (string, error)
}

// DecodeOptions controls how Decode interprets native memory.
type DecodeOptions struct {
	// Layout is the struct layout to use. Defaults to HostLayout().
	Layout *Layout

	// ResolveFunc reports whether a function address belongs to a loaded
	// module. When nil, function addresses are not checked.
	ResolveFunc func(addr uintptr) bool

	// MaxPorts overrides the default port count limit when non-zero.
	MaxPorts uint32
}

// Decode reads the LADSPA_Descriptor at addr. String fields that cannot be
// read are set to Unreadable; every other read failure or implausible value
// is reported as an error wrapping ErrMalformedDescriptor.
func Decode(mem Memory, addr uintptr, opts DecodeOptions) (*Descriptor, error) {
	layout := opts.Layout
	if layout == nil {
		layout = HostLayout()
	}
	maxPorts := opts.MaxPorts
	if maxPorts == 0 {
		maxPorts = MaxPorts
	}
	if addr == 0 {
		return nil, fmt.Errorf("%w: null descriptor address", ErrMalformedDescriptor)
	}

	var raw [numFields]uint64
	for f := Field(0); f < numFields; f++ {
		s := layout.Spec(f)
		v, err := mem.ReadUint(addr+s.Offset, s.Width)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s at %#x: %s", ErrMalformedDescriptor, f, addr, err.Error())
		}
		raw[f] = v
	}

	d := &Descriptor{
		Address:    addr,
		UniqueID:   raw[FieldUniqueID],
		Label:      readString(mem, uintptr(raw[FieldLabel])),
		Properties: Properties(int32(raw[FieldProperties])),
		Name:       readString(mem, uintptr(raw[FieldName])),
		Maker:      readString(mem, uintptr(raw[FieldMaker])),
		Copyright:  readString(mem, uintptr(raw[FieldCopyright])),
		Functions: FunctionTable{
			Instantiate:      uintptr(raw[FieldInstantiate]),
			ConnectPort:      uintptr(raw[FieldConnectPort]),
			Activate:         uintptr(raw[FieldActivate]),
			Run:              uintptr(raw[FieldRun]),
			RunAdding:        uintptr(raw[FieldRunAdding]),
			SetRunAddingGain: uintptr(raw[FieldSetRunAddingGain]),
			Deactivate:       uintptr(raw[FieldDeactivate]),
			Cleanup:          uintptr(raw[FieldCleanup]),
		},
	}

	count := raw[FieldPortCount]
	if count > uint64(maxPorts) {
		return nil, fmt.Errorf("%w: implausible port count %d", ErrMalformedDescriptor, count)
	}
	d.PortCount = uint32(count)

	if err := decodePorts(mem, d, layout.PointerSize,
		uintptr(raw[FieldPortDescriptors]),
		uintptr(raw[FieldPortNames]),
		uintptr(raw[FieldPortRangeHints])); err != nil {
		return nil, err
	}

	if opts.ResolveFunc != nil {
		for _, f := range []struct {
			field Field
			addr  uintptr
		}{
			{FieldInstantiate, d.Functions.Instantiate},
			{FieldConnectPort, d.Functions.ConnectPort},
			{FieldActivate, d.Functions.Activate},
			{FieldRun, d.Functions.Run},
			{FieldRunAdding, d.Functions.RunAdding},
			{FieldSetRunAddingGain, d.Functions.SetRunAddingGain},
			{FieldDeactivate, d.Functions.Deactivate},
			{FieldCleanup, d.Functions.Cleanup},
		} {
			if f.addr != 0 && !opts.ResolveFunc(f.addr) {
				return nil, fmt.Errorf("%w: %s address %#x is not inside a loaded module", ErrMalformedDescriptor, f.field, f.addr)
			}
		}
	}

	return d, nil
}

func decodePorts(mem Memory, d *Descriptor, ptrSize, descs, names, hints uintptr) error {
	if d.PortCount == 0 {
		d.PortDescriptors = []PortDescriptor{}
		d.PortNames = []string{}
		return nil
	}
	if descs == 0 || names == 0 {
		return fmt.Errorf("%w: %d ports declared but port arrays are null", ErrMalformedDescriptor, d.PortCount)
	}

	d.PortDescriptors = make([]PortDescriptor, d.PortCount)
	d.PortNames = make([]string, d.PortCount)
	if hints != 0 {
		d.RangeHints = make([]RangeHint, d.PortCount)
	}

	for i := uintptr(0); i < uintptr(d.PortCount); i++ {
		mask, err := mem.ReadUint(descs+i*portDescriptorSize, portDescriptorSize)
		if err != nil {
			return fmt.Errorf("%w: reading descriptor of port %d: %s", ErrMalformedDescriptor, i, err.Error())
		}
		d.PortDescriptors[i] = PortDescriptor(mask)

		namePtr, err := mem.ReadUint(names+i*ptrSize, ptrSize)
		if err != nil {
			return fmt.Errorf("%w: reading name of port %d: %s", ErrMalformedDescriptor, i, err.Error())
		}
		d.PortNames[i] = readString(mem, uintptr(namePtr))

		if hints != 0 {
			h, err := readHint(mem, hints+i*rangeHintSize)
			if err != nil {
				return fmt.Errorf("%w: reading range hint of port %d: %s", ErrMalformedDescriptor, i, err.Error())
			}
			d.RangeHints[i] = h
		}
	}
	return nil
}

func readHint(mem Memory, addr uintptr) (RangeHint, error) {
	var vals [3]uint64
	for j := range vals {
		v, err := mem.ReadUint(addr+uintptr(j)*4, 4)
		if err != nil {
			return RangeHint{}, err
		}
		vals[j] = v
	}
	return RangeHint{
		Descriptor: HintDescriptor(int32(vals[0])),
		LowerBound: math.Float32frombits(uint32(vals[1])),
		UpperBound: math.Float32frombits(uint32(vals[2])),
	}, nil
}

func readString(mem Memory, addr uintptr) string {
	if addr == 0 {
		return NotAvailable
	}
	s, err := mem.ReadCString(addr, MaxStringLen)
	if err != nil {
		return Unreadable
	}
	return s
}
