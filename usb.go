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

// ID represents a USB vendor or product identifier.
type ID uint16

// String returns a hexadecimal representation of the ID.
func (id ID) String() string {
	return fmt.Sprintf("%04x", int(id))
}

// BCD is a binary-coded-decimal version number, e.g. 0x0300 for USB 3.0.
type BCD uint16

// USB spec release numbers relevant to hub handling.
const (
	USB20 BCD = 0x0200
	USB30 BCD = 0x0300
)

// String returns a dotted representation of the BCD value.
func (d BCD) String() string {
	return fmt.Sprintf("%x.%02x", int(d>>8), int(d&0xff))
}

// Class is a USB device class code.
type Class uint8

// ClassHub is the device class code of USB hubs.
const ClassHub Class = 0x09

const (
	// maxHubChain is the deepest port chain we accept. The USB 3.0 spec
	// caps hub nesting at 7 levels.
	maxHubChain = 8

	// maxHubPorts is the largest per-port switchable hub we accept.
	// Bigger port counts have only been seen on malformed descriptors.
	maxHubPorts = 14

	// maxHubs caps the discovery catalog.
	maxHubs = 128
)

// Standard and hub class control request codes.
const (
	requestGetStatus     = 0x00
	requestClearFeature  = 0x01
	requestSetFeature    = 0x03
	requestGetDescriptor = 0x06
)

// bmRequestType values used for hub control. rtHub addresses the hub device
// itself, rtPort a downstream port ("other" recipient).
const (
	dirIn  = 0x80
	rtHub  = 0x20
	rtPort = 0x23
)

// featPortPower is the PORT_POWER feature selector (USB 2.0 table 11-17).
const featPortPower = 8

// DeviceInfo is one entry of the enumerator's device snapshot. It carries
// everything that can be known about a device without opening it.
type DeviceInfo struct {
	Bus     int
	Address int

	// Path is the chain of 1-based port numbers leading from the root
	// hub to this device. Empty for root hubs.
	Path []int

	Spec    BCD
	Vendor  ID
	Product ID
	Class   Class
}

// String returns a short human-readable identification of the device.
func (d *DeviceInfo) String() string {
	return fmt.Sprintf("%s:%s at %s", d.Vendor, d.Product, Location(d.Bus, d.Path))
}

// DeviceHandle is an open USB device. Handles are held for the duration of a
// single operation (a descriptor read, a port action) and closed immediately
// after.
type DeviceHandle interface {
	// Control performs a blocking control transfer and returns the number
	// of bytes transferred.
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)

	// Manufacturer, Product and SerialNumber read the corresponding
	// string descriptors. An empty string and an error are returned when
	// the device does not define them.
	Manufacturer() (string, error)
	Product() (string, error)
	SerialNumber() (string, error)

	// Reset performs a logical USB reset of the device, re-enumerating
	// everything downstream of a hub.
	Reset() error

	Close() error
}

// Enumerator provides access to the host USB bus: a snapshot of all attached
// devices and scoped open/close of individual devices.
//
// Implementations must keep Devices stable for the lifetime of the snapshot;
// discovery assumes the list does not change underneath it.
type Enumerator interface {
	Devices() ([]*DeviceInfo, error)
	Open(dev *DeviceInfo) (DeviceHandle, error)
}
