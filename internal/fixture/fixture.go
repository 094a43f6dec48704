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

// Package fixture provides LADSPA plugins implemented in C and linked into
// the test binaries, together with counters recording every call the host
// makes into them.
//
// The discovery function lists, in order: amp, echo, norun, nullinst and
// badport. The amp plugin multiplies its audio input by the Gain control
// (port 0) into its audio output. The echo plugin writes its Level control
// to every output sample and the absolute level to its Peak control output.
// The norun plugin has no run function, nullinst always fails to
// instantiate and badport declares an audio port that is both an input and
// an output.
//
// ClientOpen stands in for the variadic jack_client_open.
package fixture

/*
#cgo CFLAGS: -I${SRCDIR}/../../pkg/loader

#include "fixture.h"
*/
import "C"

const (
	AmpID           = C.FIXTURE_AMP_ID
	EchoID          = C.FIXTURE_ECHO_ID
	NoRunID         = C.FIXTURE_NORUN_ID
	NullInstanceID  = C.FIXTURE_NULLINST_ID
	BadPortID       = C.FIXTURE_BADPORT_ID
	BogusFunctionID = C.FIXTURE_BOGUS_ID

	// Count is the number of plugins listed by Symbols.
	Count = 5
)

// Port indices of the amp plugin.
const (
	AmpGain = iota
	AmpInput
	AmpOutput
)

// Port indices of the echo plugin.
const (
	EchoLevel = iota
	EchoOutput
	EchoPeak
)

// Counters reports the calls made into the fixture plugins since the last
// Reset.
type Counters struct {
	Instantiate     int
	Connect         int
	Activate        int
	Run             int
	RunAdding       int
	Deactivate      int
	Cleanup         int
	UnconnectedRuns int
	LastSampleRate  uint64
	LastSampleCount uint64
	RunAddingGain   float32
}

// Reset zeroes the counters.
func Reset() {
	C.fixture_reset()
}

// Stats returns a snapshot of the counters.
func Stats() Counters {
	s := C.fixture_stats
	return Counters{
		Instantiate:     int(s.instantiate_calls),
		Connect:         int(s.connect_calls),
		Activate:        int(s.activate_calls),
		Run:             int(s.run_calls),
		RunAdding:       int(s.run_adding_calls),
		Deactivate:      int(s.deactivate_calls),
		Cleanup:         int(s.cleanup_calls),
		UnconnectedRuns: int(s.unconnected_runs),
		LastSampleRate:  uint64(s.last_sample_rate),
		LastSampleCount: uint64(s.last_sample_count),
		RunAddingGain:   float32(s.run_adding_gain),
	}
}

// Symbols returns the symbol table of a module exporting the fixture
// plugins.
func Symbols() map[string]uintptr {
	return map[string]uintptr{"ladspa_descriptor": uintptr(C.fixture_discovery_addr())}
}

// EmptySymbols returns the symbol table of a module whose discovery
// function returns no plugin.
func EmptySymbols() map[string]uintptr {
	return map[string]uintptr{"ladspa_descriptor": uintptr(C.fixture_empty_discovery_addr())}
}

// BogusSymbols returns the symbol table of a module listing the amp plugin
// followed by a plugin whose run function points outside of any module.
func BogusSymbols() map[string]uintptr {
	return map[string]uintptr{"ladspa_descriptor": uintptr(C.fixture_bogus_discovery_addr())}
}

// ClientOpen returns the address of a function with the signature of
// jack_client_open. It fails with JackFailure|JackInvalidOption when given
// an empty name.
func ClientOpen() uintptr {
	return uintptr(C.fixture_client_open_addr())
}

// LastClient returns the name and options of the last ClientOpen call.
func LastClient() (string, uint32) {
	return C.GoString(&C.fixture_client_name[0]), uint32(C.fixture_client_options)
}
