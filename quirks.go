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

import "fmt"

// Hardware exception table.
//
// The entries below patch descriptors of specific boards that are known to
// lie. They are empirical: none of this is derivable from the USB specs, and
// none of it should be generalized without new hardware evidence. Keeping
// them in one table keeps the heuristics visible and testable in isolation.

const (
	vendorVIA   ID = 0x2109 // VIA Labs
	vendorLinux ID = 0x1d6b // Linux Foundation root hubs

	productVL805Hub ID = 0x3431
	productRootUSB2 ID = 0x0002
	productRootUSB3 ID = 0x0003

	// vl805ContainerID stands in for the Container ID the VL805-based
	// onboard hub of a popular single-board computer fails to report.
	// The value only needs to be identical on both personalities of
	// that one hub.
	vl805ContainerID = "5cf3ee30d5074925b001802d79434c30"
)

type quirk struct {
	name    string
	matches func(h *Hub) bool
	apply   func(h *Hub)
}

// quirks are applied in order; later entries see earlier patches.
var quirks = []quirk{
	{
		// The VL805 onboard hub reports ganged switching but actually
		// switches per port.
		name: "vl805 misreported power switching",
		matches: func(h *Hub) bool {
			return h.Device.Vendor == vendorVIA && h.Device.Product == productVL805Hub &&
				h.PowerSwitching == PowerSwitchingGanged
		},
		apply: func(h *Hub) {
			h.PowerSwitching = PowerSwitchingIndividual
		},
	},
	{
		// The same board omits the Container ID on both hub
		// personalities: the USB3 one is the root hub itself, the USB2
		// one is the VL805 hub one level down. Substitute a fixed ID
		// so the duality resolver can still link them.
		name: "vl805 missing container ID",
		matches: func(h *Hub) bool {
			if h.ContainerID != "" {
				return false
			}
			root3 := h.Device.Vendor == vendorLinux && h.Device.Product == productRootUSB3 &&
				len(h.Device.Path) == 0 && h.Ports == 4
			hub2 := h.Device.Vendor == vendorVIA && h.Device.Product == productVL805Hub &&
				len(h.Device.Path) == 1
			return root3 || hub2
		},
		apply: func(h *Hub) {
			h.ContainerID = vl805ContainerID
		},
	},
	{
		// The board's later revision has power-switchable root hubs
		// with no Container ID at all. Synthesize a placeholder from
		// vendor and port count offset by the super-speed flag: the
		// USB2 root exposes one port more than its USB3 sibling, so
		// the pair lands on the same value while unrelated hubs stay
		// distinct.
		name: "root hub placeholder container ID",
		matches: func(h *Hub) bool {
			return h.ContainerID == "" && len(h.Device.Path) == 0 &&
				h.Device.Vendor == vendorLinux &&
				(h.Device.Product == productRootUSB2 || h.Device.Product == productRootUSB3)
		},
		apply: func(h *Hub) {
			ss := 0
			if h.SuperSpeed {
				ss = 1
			}
			h.ContainerID = fmt.Sprintf("%04x%028x", uint16(h.Device.Vendor), h.Ports+ss)
		},
	},
}

func applyQuirks(h *Hub) {
	for _, q := range quirks {
		if q.matches(h) {
			q.apply(h)
			debug.Printf("quirk %q applied to %s", q.name, h.Location)
		}
	}
}
