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

import "errors"

// Errors returned by the loader and the plugin instance. They are always
// wrapped with additional context, use errors.Is to test for them.
var (
	// ErrLoad is returned when a module cannot be opened.
	ErrLoad = errors.New("cannot load plugin module")

	// ErrMissingEntryPoint is returned when a module does not export the
	// ladspa_descriptor discovery function.
	ErrMissingEntryPoint = errors.New("missing ladspa_descriptor entry point")

	// ErrMalformedDescriptor is returned when a decoded descriptor carries
	// implausible values or unresolvable function pointers.
	ErrMalformedDescriptor = errors.New("malformed plugin descriptor")

	// ErrUnsupportedPlugin is returned when a plugin lacks one of the
	// functions required to host it.
	ErrUnsupportedPlugin = errors.New("unsupported plugin")

	// ErrInstantiation is returned when the native instantiate function
	// returns a null handle.
	ErrInstantiation = errors.New("plugin instantiation failed")

	// ErrUnreadablePointer is returned when reading plugin supplied memory
	// faults.
	ErrUnreadablePointer = errors.New("unreadable pointer")

	// ErrInvalidState is returned when a lifecycle function is invoked out
	// of the order mandated by the ABI.
	ErrInvalidState = errors.New("invalid plugin instance state")

	// ErrPortRange is returned when a port index is not lower than the
	// plugin port count.
	ErrPortRange = errors.New("port index out of range")

	// ErrLiveInstances is returned when unloading a module that still has
	// instances that were not cleaned up.
	ErrLiveInstances = errors.New("module has live plugin instances")
)
