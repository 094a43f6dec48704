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

// Package ptr reads native memory that is not owned by the Go runtime, such
// as the static data of a dynamically loaded plugin module.
//
// Plugin supplied pointers cannot be trusted: every read goes through Guard,
// which converts a memory fault into an error instead of letting it crash
// the process.
package ptr
