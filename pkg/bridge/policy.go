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

package bridge

import "fmt"

// ConnectPolicy decides when plugin audio ports are connected to the server
// buffers.
type ConnectPolicy int

const (
	// ConnectEveryBlock connects every plugin audio port before each run.
	// Servers such as JACK do not guarantee that a port buffer keeps its
	// address across blocks.
	ConnectEveryBlock ConnectPolicy = iota

	// ConnectOnce connects the ports on the first block, then only when
	// the address of a server buffer changes.
	ConnectOnce
)

func (p ConnectPolicy) String() string {
	switch p {
	case ConnectEveryBlock:
		return "every-block"
	case ConnectOnce:
		return "once"
	default:
		return fmt.Sprintf("ConnectPolicy(%d)", int(p))
	}
}

// ParsePolicy parses the string form of a ConnectPolicy. The empty string
// selects ConnectEveryBlock.
func ParsePolicy(s string) (ConnectPolicy, error) {
	switch s {
	case "", "every-block":
		return ConnectEveryBlock, nil
	case "once":
		return ConnectOnce, nil
	default:
		return 0, fmt.Errorf("unknown connect policy %q", s)
	}
}
