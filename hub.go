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

// Actionable records how a hub was selected in the current invocation.
type Actionable int

const (
	// NotActionable hubs were discovered but not selected.
	NotActionable Actionable = iota
	// ActionableDirect hubs matched the user's filters.
	ActionableDirect
	// ActionableDual hubs were selected only because they are the other
	// personality of a directly selected USB3 hub.
	ActionableDual
)

// Hub is one power-switchable hub found in the device snapshot. Two Hub
// values may describe the same physical enclosure: a physical USB3 hub
// enumerates once per protocol generation, and the duality resolver links
// the pair.
type Hub struct {
	// Device is the snapshot entry this hub was built from. Borrowed
	// from the enumerator, not owned.
	Device *DeviceInfo

	Ports          int
	PowerSwitching PowerSwitching
	Actionable     Actionable
	SuperSpeed     bool

	// ContainerID is the 128-bit BOS Container ID as 32 lowercase hex
	// characters, or empty when the device does not provide one.
	ContainerID string

	// VendorString is the "vvvv:pppp" identity used by the vendor filter.
	VendorString string

	Location    string
	Description string
	Serial      string

	// Dual is the hub's other-generation personality, if one was found.
	Dual *Hub
}

// String identifies the hub by location and description.
func (h *Hub) String() string {
	return fmt.Sprintf("hub %s [%s]", h.Location, h.Description)
}

// PortsMask is the bitmap covering every port of this hub.
func (h *Hub) PortsMask() PortMask {
	return PortMask(1<<h.Ports) - 1
}

// describe composes the description string shared by hubs and plain devices:
// the vendor:product identity followed by whichever string descriptors the
// device defines.
func describe(vendor, product ID, texts ...string) string {
	parts := []string{vendor.String() + ":" + product.String()}
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// AttachedPort reports which port of h the snapshot device dev sits on
// directly, or 0 when dev is not a direct child of h.
func (h *Hub) AttachedPort(dev *DeviceInfo) int {
	if !directChild(h.Device, dev) {
		return 0
	}
	return dev.Path[len(dev.Path)-1]
}

// readHub reads the hub class descriptor, Container ID and string
// descriptors of a hub class device and builds its Hub record. The device
// handle is held only for the duration of the call.
func readHub(enum Enumerator, dev *DeviceInfo) (*Hub, error) {
	if dev.Class != ClassHub {
		return nil, ErrNotAHub
	}
	handle, err := enum.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev, err)
	}
	defer handle.Close()

	superSpeed := dev.Spec >= USB30
	desc, err := readHubDescriptor(handle, superSpeed)
	if err != nil {
		return nil, fmt.Errorf("hub descriptor of %s: %w", dev, err)
	}
	if desc.ports < 1 || desc.ports > maxHubPorts {
		return nil, fmt.Errorf("hubctl: %s reports implausible port count %d", dev, desc.ports)
	}

	mode := desc.powerSwitching
	if mode == PowerSwitchingGanged && desc.ports == 1 {
		// ganged switching over a single port behaves exactly like
		// per-port switching
		mode = PowerSwitchingIndividual
	}

	hub := &Hub{
		Device:         dev,
		Ports:          desc.ports,
		PowerSwitching: mode,
		SuperSpeed:     superSpeed,
		VendorString:   dev.Vendor.String() + ":" + dev.Product.String(),
		Location:       Location(dev.Bus, dev.Path),
	}

	// BOS failures only degrade duality matching, never discovery.
	if id, err := readContainerID(handle); err != nil {
		debug.Printf("no container ID for %s: %v", hub.Location, err)
	} else {
		hub.ContainerID = id
	}

	manufacturer, _ := handle.Manufacturer()
	product, _ := handle.Product()
	hub.Serial, _ = handle.SerialNumber()
	hub.Description = describe(dev.Vendor, dev.Product, manufacturer, product, hub.Serial)

	applyQuirks(hub)
	return hub, nil
}

// DescribeDevice opens a device just long enough to read its string
// descriptors and compose its description. Devices that cannot be opened
// still get the vendor:product part.
func DescribeDevice(enum Enumerator, dev *DeviceInfo) string {
	handle, err := enum.Open(dev)
	if err != nil {
		if !errors.Is(err, ErrAccessDenied) {
			debug.Printf("describe %s: %v", dev, err)
		}
		return describe(dev.Vendor, dev.Product)
	}
	defer handle.Close()
	manufacturer, _ := handle.Manufacturer()
	product, _ := handle.Product()
	serial, _ := handle.SerialNumber()
	return describe(dev.Vendor, dev.Product, manufacturer, product, serial)
}
