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

import "math"

// HintDescriptor is the LADSPA_PortRangeHintDescriptor bitfield.
type HintDescriptor int32

const (
	HintBoundedBelow HintDescriptor = 0x1
	HintBoundedAbove HintDescriptor = 0x2
	HintToggled      HintDescriptor = 0x4
	HintSampleRate   HintDescriptor = 0x8
	HintLogarithmic  HintDescriptor = 0x10
	HintInteger      HintDescriptor = 0x20

	HintDefaultMask    HintDescriptor = 0x3C0
	HintDefaultNone    HintDescriptor = 0x0
	HintDefaultMinimum HintDescriptor = 0x40
	HintDefaultLow     HintDescriptor = 0x80
	HintDefaultMiddle  HintDescriptor = 0xC0
	HintDefaultHigh    HintDescriptor = 0x100
	HintDefaultMaximum HintDescriptor = 0x140
	HintDefault0       HintDescriptor = 0x200
	HintDefault1       HintDescriptor = 0x240
	HintDefault100     HintDescriptor = 0x280
	HintDefault440     HintDescriptor = 0x2C0
)

// rangeHintSize is sizeof(LADSPA_PortRangeHint): an int and two floats,
// identical for every supported data model.
const rangeHintSize = 12

// RangeHint is the decoded LADSPA_PortRangeHint of a port.
type RangeHint struct {
	Descriptor HintDescriptor
	LowerBound float32
	UpperBound float32
}

// Has returns true if all the bits of h are set.
func (r RangeHint) Has(h HintDescriptor) bool {
	return r.Descriptor&h == h
}

// Bounds returns the effective lower and upper bounds, scaled by the sample
// rate when the hint requests it.
func (r RangeHint) Bounds(sampleRate uint32) (lower, upper float32) {
	lower, upper = r.LowerBound, r.UpperBound
	if r.Has(HintSampleRate) {
		lower *= float32(sampleRate)
		upper *= float32(sampleRate)
	}
	return
}

// Default computes the default value a host should use for a control port
// following the LADSPA rules. The boolean is false if the plugin does not
// declare a usable default.
func (r RangeHint) Default(sampleRate uint32) (float32, bool) {
	lower, upper := r.Bounds(sampleRate)
	log := r.Has(HintLogarithmic)

	var v float32
	switch r.Descriptor & HintDefaultMask {
	case HintDefaultNone:
		if r.Has(HintToggled) {
			return 0, true
		}
		return 0, false
	case HintDefaultMinimum:
		if !r.Has(HintBoundedBelow) {
			return 0, false
		}
		v = lower
	case HintDefaultLow:
		if !r.Has(HintBoundedBelow | HintBoundedAbove) {
			return 0, false
		}
		v = interpolate(lower, upper, 0.25, log)
	case HintDefaultMiddle:
		if !r.Has(HintBoundedBelow | HintBoundedAbove) {
			return 0, false
		}
		v = interpolate(lower, upper, 0.5, log)
	case HintDefaultHigh:
		if !r.Has(HintBoundedBelow | HintBoundedAbove) {
			return 0, false
		}
		v = interpolate(lower, upper, 0.75, log)
	case HintDefaultMaximum:
		if !r.Has(HintBoundedAbove) {
			return 0, false
		}
		v = upper
	case HintDefault0:
		v = 0
	case HintDefault1:
		v = 1
	case HintDefault100:
		v = 100
	case HintDefault440:
		v = 440
	default:
		return 0, false
	}

	if r.Has(HintInteger) {
		v = float32(math.Round(float64(v)))
	}
	return v, true
}

// Clamp limits v to the declared bounds of the port.
func (r RangeHint) Clamp(v float32, sampleRate uint32) float32 {
	lower, upper := r.Bounds(sampleRate)
	if r.Has(HintBoundedBelow) && v < lower {
		v = lower
	}
	if r.Has(HintBoundedAbove) && v > upper {
		v = upper
	}
	if r.Has(HintToggled) {
		if v > 0 {
			return 1
		}
		return 0
	}
	return v
}

// interpolate places a value at position t between lower and upper, on a
// geometric scale for logarithmic ports with strictly positive bounds.
func interpolate(lower, upper float32, t float64, logarithmic bool) float32 {
	if logarithmic && lower > 0 && upper > 0 {
		l := math.Log(float64(lower))
		u := math.Log(float64(upper))
		return float32(math.Exp(l*(1-t) + u*t))
	}
	return float32(float64(lower)*(1-t) + float64(upper)*t)
}
