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

package plugin

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State is the lifecycle state of a plugin instance.
type State string

// note: the machine is built from untyped constants
const (
	stateInstantiated = "instantiated"
	stateActive       = "active"
	stateInactive     = "inactive"
	stateCleaned      = "cleaned"
)

const (
	// StateInstantiated is the state right after instantiation.
	StateInstantiated State = stateInstantiated
	// StateActive is the only state in which the instance can run.
	StateActive State = stateActive
	// StateInactive is the state after a deactivation. The instance can
	// be activated again.
	StateInactive State = stateInactive
	// StateCleaned is the terminal state.
	StateCleaned State = stateCleaned
)

// Lifecycle events
const (
	EventActivate   = "ACTIVATE"
	EventDeactivate = "DEACTIVATE"
	EventCleanup    = "CLEANUP"
)

// lifecycle is the context of the state machine. Instance data lives in
// the Instance itself.
type lifecycle struct{}

// buildLifecycle constructs the instance state machine using statekit. The
// instance is captured by the actions to keep its counters up to date.
func buildLifecycle(inst *Instance) (*statekit.Interpreter[lifecycle], error) {
	machine, err := statekit.NewMachine[lifecycle]("ladspa-instance").
		WithInitial(stateInstantiated).
		WithContext(lifecycle{}).
		WithAction("recordActivation", func(_ *lifecycle, _ statekit.Event) {
			inst.activations++
		}).
		State(stateInstantiated).
		On(EventActivate).Target(stateActive).
		On(EventCleanup).Target(stateCleaned).Done().
		State(stateActive).
		OnEntry("recordActivation").
		On(EventDeactivate).Target(stateInactive).
		On(EventCleanup).Target(stateCleaned).Done().
		State(stateInactive).
		On(EventActivate).Target(stateActive).
		On(EventCleanup).Target(stateCleaned).Done().
		State(stateCleaned).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build lifecycle state machine: %w", err)
	}
	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return interp, nil
}
