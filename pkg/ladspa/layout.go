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
	"math/bits"
	"runtime"
)

// Field identifies one member of the LADSPA_Descriptor struct. Fields are
// listed in declaration order.
type Field int

const (
	FieldUniqueID Field = iota
	FieldLabel
	FieldProperties
	FieldName
	FieldMaker
	FieldCopyright
	FieldPortCount
	FieldPortDescriptors
	FieldPortNames
	FieldPortRangeHints
	FieldImplementationData
	FieldInstantiate
	FieldConnectPort
	FieldActivate
	FieldRun
	FieldRunAdding
	FieldSetRunAddingGain
	FieldDeactivate
	FieldCleanup

	numFields
)

var fieldNames = [numFields]string{
	"UniqueID",
	"Label",
	"Properties",
	"Name",
	"Maker",
	"Copyright",
	"PortCount",
	"PortDescriptors",
	"PortNames",
	"PortRangeHints",
	"ImplementationData",
	"instantiate",
	"connect_port",
	"activate",
	"run",
	"run_adding",
	"set_run_adding_gain",
	"deactivate",
	"cleanup",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// cType is the C type class of a descriptor member.
type cType int

const (
	cLong cType = iota
	cInt
	cPointer
)

var fieldTypes = [numFields]cType{
	FieldUniqueID:           cLong,
	FieldLabel:              cPointer,
	FieldProperties:         cInt,
	FieldName:               cPointer,
	FieldMaker:              cPointer,
	FieldCopyright:          cPointer,
	FieldPortCount:          cLong,
	FieldPortDescriptors:    cPointer,
	FieldPortNames:          cPointer,
	FieldPortRangeHints:     cPointer,
	FieldImplementationData: cPointer,
	FieldInstantiate:        cPointer,
	FieldConnectPort:        cPointer,
	FieldActivate:           cPointer,
	FieldRun:                cPointer,
	FieldRunAdding:          cPointer,
	FieldSetRunAddingGain:   cPointer,
	FieldDeactivate:         cPointer,
	FieldCleanup:            cPointer,
}

// FieldSpec is the position of a field inside the native struct.
type FieldSpec struct {
	Field  Field
	Offset uintptr
	Width  uintptr
}

// DataModel describes the sizes of the C types used by the descriptor
// struct. Alignment is assumed to be natural (equal to the size).
type DataModel struct {
	Name        string
	LongSize    uintptr
	IntSize     uintptr
	PointerSize uintptr
}

// Common data models.
var (
	// LP64 is used by 64-bit Linux, BSD and macOS.
	LP64 = DataModel{Name: "LP64", LongSize: 8, IntSize: 4, PointerSize: 8}
	// ILP32 is used by 32-bit targets.
	ILP32 = DataModel{Name: "ILP32", LongSize: 4, IntSize: 4, PointerSize: 4}
	// LLP64 is used by 64-bit Windows.
	LLP64 = DataModel{Name: "LLP64", LongSize: 4, IntSize: 4, PointerSize: 8}
)

func (m DataModel) size(t cType) uintptr {
	switch t {
	case cLong:
		return m.LongSize
	case cInt:
		return m.IntSize
	default:
		return m.PointerSize
	}
}

// Layout is the byte layout of LADSPA_Descriptor for one data model.
type Layout struct {
	Name        string
	Size        uintptr
	PointerSize uintptr
	fields      [numFields]FieldSpec
}

// Spec returns the offset and width of a field.
func (l *Layout) Spec(f Field) FieldSpec {
	return l.fields[f]
}

// Fields returns the fields of the layout in declaration order.
func (l *Layout) Fields() []FieldSpec {
	res := make([]FieldSpec, numFields)
	copy(res, l.fields[:])
	return res
}

// NewLayout builds a layout from an explicit list of field positions. Every
// field must be listed exactly once and lie within size bytes.
func NewLayout(name string, size, pointerSize uintptr, specs []FieldSpec) (*Layout, error) {
	l := &Layout{Name: name, Size: size, PointerSize: pointerSize}
	var seen [numFields]bool
	for _, s := range specs {
		if s.Field < 0 || s.Field >= numFields {
			return nil, fmt.Errorf("layout %s: unknown field %d", name, int(s.Field))
		}
		if seen[s.Field] {
			return nil, fmt.Errorf("layout %s: duplicate field %s", name, s.Field)
		}
		switch s.Width {
		case 1, 2, 4, 8:
		default:
			return nil, fmt.Errorf("layout %s: field %s has unsupported width %d", name, s.Field, s.Width)
		}
		if s.Offset+s.Width > size {
			return nil, fmt.Errorf("layout %s: field %s exceeds struct size %d", name, s.Field, size)
		}
		seen[s.Field] = true
		l.fields[s.Field] = s
	}
	for f, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("layout %s: missing field %s", name, Field(f))
		}
	}
	return l, nil
}

// ComputeLayout derives the descriptor layout for a data model, inserting
// the padding a C compiler adds in front of each naturally aligned member.
func ComputeLayout(m DataModel) *Layout {
	l := &Layout{Name: m.Name, PointerSize: m.PointerSize}
	var off, maxAlign uintptr
	for f := Field(0); f < numFields; f++ {
		sz := m.size(fieldTypes[f])
		off = alignUp(off, sz)
		l.fields[f] = FieldSpec{Field: f, Offset: off, Width: sz}
		off += sz
		if sz > maxAlign {
			maxAlign = sz
		}
	}
	l.Size = alignUp(off, maxAlign)
	return l
}

func alignUp(v, a uintptr) uintptr {
	if a == 0 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}

// HostDataModel returns the data model of the platform this binary is
// built for.
func HostDataModel() DataModel {
	if bits.UintSize == 32 {
		return ILP32
	}
	if runtime.GOOS == "windows" {
		return LLP64
	}
	return LP64
}

var hostLayout = ComputeLayout(HostDataModel())

// HostLayout returns the descriptor layout of the current platform.
func HostLayout() *Layout {
	return hostLayout
}
