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
	"testing"

	"github.com/stretchr/testify/assert"
)

const bounded = HintBoundedBelow | HintBoundedAbove

func TestRangeHintDefault(t *testing.T) {
	tests := []struct {
		name string
		hint RangeHint
		want float32
		ok   bool
	}{
		{"none", RangeHint{Descriptor: bounded, LowerBound: 0, UpperBound: 1}, 0, false},
		{"toggled", RangeHint{Descriptor: HintToggled}, 0, true},
		{"minimum", RangeHint{Descriptor: bounded | HintDefaultMinimum, LowerBound: 2, UpperBound: 10}, 2, true},
		{"minimum_unbounded", RangeHint{Descriptor: HintDefaultMinimum}, 0, false},
		{"low", RangeHint{Descriptor: bounded | HintDefaultLow, LowerBound: 0, UpperBound: 100}, 25, true},
		{"middle", RangeHint{Descriptor: bounded | HintDefaultMiddle, LowerBound: -20, UpperBound: 20}, 0, true},
		{"high", RangeHint{Descriptor: bounded | HintDefaultHigh, LowerBound: 0, UpperBound: 100}, 75, true},
		{"maximum", RangeHint{Descriptor: bounded | HintDefaultMaximum, LowerBound: 0, UpperBound: 8}, 8, true},
		{"zero", RangeHint{Descriptor: HintDefault0}, 0, true},
		{"one", RangeHint{Descriptor: HintDefault1}, 1, true},
		{"hundred", RangeHint{Descriptor: HintDefault100}, 100, true},
		{"a440", RangeHint{Descriptor: HintDefault440}, 440, true},
		{"log_middle", RangeHint{Descriptor: bounded | HintLogarithmic | HintDefaultMiddle, LowerBound: 1, UpperBound: 100}, 10, true},
		{"integer", RangeHint{Descriptor: bounded | HintInteger | HintDefaultLow, LowerBound: 0, UpperBound: 3}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.hint.Default(48000)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-3)
			}
		})
	}
}

func TestRangeHintSampleRate(t *testing.T) {
	h := RangeHint{Descriptor: bounded | HintSampleRate | HintDefaultMaximum, LowerBound: 0, UpperBound: 0.5}
	v, ok := h.Default(48000)
	assert.True(t, ok)
	assert.Equal(t, float32(24000), v)

	lower, upper := h.Bounds(44100)
	assert.Equal(t, float32(0), lower)
	assert.Equal(t, float32(22050), upper)
}

func TestRangeHintClamp(t *testing.T) {
	h := RangeHint{Descriptor: bounded, LowerBound: -1, UpperBound: 1}
	assert.Equal(t, float32(-1), h.Clamp(-5, 48000))
	assert.Equal(t, float32(1), h.Clamp(5, 48000))
	assert.Equal(t, float32(0.5), h.Clamp(0.5, 48000))

	toggle := RangeHint{Descriptor: HintToggled}
	assert.Equal(t, float32(1), toggle.Clamp(0.3, 48000))
	assert.Equal(t, float32(0), toggle.Clamp(-2, 48000))

	free := RangeHint{}
	assert.Equal(t, float32(1e6), free.Clamp(1e6, 48000))
}
