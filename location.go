// Copyright 2024 the hubctl Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hubctl

import (
	"strconv"
	"strings"
)

// Location renders the canonical path of a device in the USB topology:
// the bus number, then the port chain joined with "-" for the first hop
// and "." for the rest, e.g. bus 3 with chain [1 4] becomes "3-1.4".
// A device directly on the root hub is just its bus number.
//
// This matches the path scheme of the host's USB subsystem, so users can
// correlate the output with external diagnostic tools. Paths are stable
// across replug of the same physical port, but not across bus renumbering.
func Location(bus int, path []int) string {
	if len(path) > maxHubChain {
		path = path[:maxHubChain]
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(bus))
	for i, p := range path {
		if i == 0 {
			b.WriteByte('-')
		} else {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// directChild reports whether dev sits directly on a port of hub: same bus,
// and dev's port chain is hub's chain plus exactly one more hop.
func directChild(hub, dev *DeviceInfo) bool {
	if dev.Bus != hub.Bus || len(dev.Path) != len(hub.Path)+1 {
		return false
	}
	for i := range hub.Path {
		if dev.Path[i] != hub.Path[i] {
			return false
		}
	}
	return true
}

func pathEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
