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

package jack

/*
#include <stdint.h>
*/
import "C"

import (
	"github.com/BowmanRA/mistomp/pkg/cgo"
)

// mistompProcess is the JACK process callback of every client. The user
// data argument is the handle of the client in the clients table.
//
//export mistompProcess
func mistompProcess(frames C.uint32_t, arg C.uintptr_t) C.int {
	return C.int(dispatch(cgo.Handle(arg), uint32(frames)))
}
