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
	"errors"
	"fmt"
	"strings"
)

// Options controls which discovered hubs become actionable. All active
// filters are independent AND conditions.
type Options struct {
	// Location selects a single hub by its exact location path,
	// case-insensitively.
	Location string

	// Level selects hubs by topology depth: level 1 is a root hub,
	// level 2 a hub one hop from the root, and so on.
	Level int

	// Vendor is a case-insensitive prefix of the hub's "vvvv:pppp"
	// identity; "2109" matches every VIA hub.
	Vendor string

	// SearchDevice selects hubs that have a device attached whose
	// description contains this substring (case-sensitive). A match also
	// narrows the port selection to the port the device occupies.
	SearchDevice string

	// SearchHub selects hubs whose own description contains this
	// substring (case-sensitive).
	SearchHub string

	// Ports is the initial port selection bitmap. Zero means all ports.
	Ports PortMask

	// Force retains hubs regardless of their declared power switching
	// mode, for hubs with known-incorrect descriptors.
	Force bool

	// Exact disables USB2/USB3 duality resolution; every hub stands
	// alone.
	Exact bool

	// PortableBusNumbers disables the duality tie-break that assumes a
	// hub's USB2 bus number is one less than its USB3 bus number, which
	// is a Linux bus numbering convention.
	PortableBusNumbers bool
}

// Catalog is the result of one discovery pass over a device snapshot.
type Catalog struct {
	// Hubs lists every power-switchable hub found, actionable or not.
	// Non-actionable entries are kept for duality resolution.
	Hubs []*Hub

	// Ports is the effective port selection: the requested bitmap,
	// possibly narrowed by an attached-device search match.
	Ports PortMask

	// PermissionProblem is set when at least one device could not be
	// accessed. It distinguishes "no matching hardware" from "no access"
	// when the catalog comes up empty.
	PermissionProblem bool

	// Truncated is set when scanning stopped at the catalog capacity.
	Truncated bool

	exact bool
}

// Discover enumerates the bus once and builds the hub catalog: every
// hub class device with individual port power switching, with the hubs
// matching opts marked actionable and USB2/USB3 dual personalities linked.
//
// Individual devices that cannot be read are skipped, not fatal; only a
// failed enumeration returns an error.
func Discover(enum Enumerator, opts Options) (*Catalog, error) {
	devs, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("hubctl: enumerating devices: %w", err)
	}

	cat := &Catalog{Ports: opts.Ports, exact: opts.Exact}
	if cat.Ports == 0 {
		cat.Ports = AllPorts
	}

	for _, dev := range devs {
		if dev.Class != ClassHub {
			continue
		}
		hub, err := readHub(enum, dev)
		if err != nil {
			if errors.Is(err, ErrAccessDenied) {
				cat.PermissionProblem = true
			}
			debug.Printf("skipping %s: %v", dev, err)
			continue
		}
		if hub.PowerSwitching != PowerSwitchingIndividual && !opts.Force {
			continue
		}
		if len(cat.Hubs) >= maxHubs {
			debug.Printf("more than %d hubs, truncating scan", maxHubs)
			cat.Truncated = true
			break
		}
		cat.Hubs = append(cat.Hubs, hub)
	}

	cat.selectHubs(enum, devs, opts)
	if !opts.Exact {
		resolveDuals(cat.Hubs, opts.PortableBusNumbers)
	}
	return cat, nil
}

// selectHubs applies the filters in opts and marks passing hubs actionable.
func (c *Catalog) selectHubs(enum Enumerator, devs []*DeviceInfo, opts Options) {
	for _, hub := range c.Hubs {
		if opts.SearchDevice != "" {
			port, ok := findAttached(enum, devs, hub, opts.SearchDevice)
			if !ok {
				continue
			}
			// Selecting a hub through an attached device also pins
			// the action to the port that device occupies.
			c.Ports = PortMask(1) << (port - 1)
		}
		if opts.SearchHub != "" && !strings.Contains(hub.Description, opts.SearchHub) {
			continue
		}
		if opts.Location != "" && !strings.EqualFold(opts.Location, hub.Location) {
			continue
		}
		if opts.Level > 0 && opts.Level != len(hub.Device.Path)+1 {
			continue
		}
		if opts.Vendor != "" && !strings.HasPrefix(strings.ToLower(hub.VendorString), strings.ToLower(opts.Vendor)) {
			continue
		}
		hub.Actionable = ActionableDirect
	}
}

// findAttached looks for a device directly attached to hub whose description
// contains substr, and returns the port it occupies. With several matches
// the last one wins.
func findAttached(enum Enumerator, devs []*DeviceInfo, hub *Hub, substr string) (int, bool) {
	port, found := 0, false
	for _, dev := range devs {
		if !directChild(hub.Device, dev) {
			continue
		}
		if strings.Contains(DescribeDevice(enum, dev), substr) {
			port = dev.Path[len(dev.Path)-1]
			found = true
		}
	}
	return port, found
}

// Actionable returns the hubs selected in this invocation, directly or as
// dual personalities.
func (c *Catalog) Actionable() []*Hub {
	var out []*Hub
	for _, hub := range c.Hubs {
		if hub.Actionable != NotActionable {
			out = append(out, hub)
		}
	}
	return out
}

// PhysicalCount reports how many physical hubs are selected. A dual pair
// counts once: only the USB2 personality is counted, except in exact mode
// where every actionable hub stands for itself.
func (c *Catalog) PhysicalCount() int {
	n := 0
	for _, hub := range c.Hubs {
		if hub.Actionable == NotActionable {
			continue
		}
		if c.exact || !hub.SuperSpeed {
			n++
		}
	}
	return n
}
