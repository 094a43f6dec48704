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

// Package ladspa contains the Go representation of the LADSPA plugin ABI:
// the port descriptor bitfield, port range hints, the binary layout of the
// LADSPA_Descriptor struct for the supported C data models, and the routine
// that decodes a native descriptor into a Descriptor value.
//
// This package never calls into native code. Memory is accessed through the
// Memory interface, so that the decoder can be exercised against synthetic
// memory images as well as against the live process (see package ptr and
// package loader).
package ladspa
