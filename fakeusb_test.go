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
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// fakeDevice is one device on the fake bus. The zero value is a device that
// answers no control requests; the builders below fill in the pieces a test
// needs.
type fakeDevice struct {
	info    DeviceInfo
	hubDesc []byte
	bos     []byte

	manufacturer, product, serial string

	// openErr is returned from Open instead of a handle.
	openErr error

	// status holds the wPortStatus word per port number. Power feature
	// requests mutate it like real hub hardware would.
	status map[int]uint16

	resets int
}

// transferRecord is one logged SET_FEATURE/CLEAR_FEATURE port request.
type transferRecord struct {
	bus, address int
	request      uint8
	feature      uint16
	port         int
}

// fakeEnumerator implements Enumerator over a fixed device table. Port
// power requests are applied to the fake status words and logged, so tests
// can assert exactly which transfers were sent.
type fakeEnumerator struct {
	devices []*fakeDevice
	log     []transferRecord
}

func newFakeEnumerator(devs ...*fakeDevice) *fakeEnumerator {
	return &fakeEnumerator{devices: devs}
}

func (f *fakeEnumerator) Devices() ([]*DeviceInfo, error) {
	out := make([]*DeviceInfo, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, &d.info)
	}
	return out, nil
}

func (f *fakeEnumerator) Open(info *DeviceInfo) (DeviceHandle, error) {
	for _, d := range f.devices {
		if d.info.Bus == info.Bus && d.info.Address == info.Address {
			if d.openErr != nil {
				return nil, d.openErr
			}
			return &fakeHandle{dev: d, enum: f}, nil
		}
	}
	return nil, fmt.Errorf("fake: no device at %d/%d", info.Bus, info.Address)
}

type fakeHandle struct {
	dev  *fakeDevice
	enum *fakeEnumerator
}

func (h *fakeHandle) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	switch {
	case rType == dirIn|rtHub && request == requestGetDescriptor:
		if h.dev.hubDesc == nil {
			return 0, fmt.Errorf("fake: %s has no hub descriptor", &h.dev.info)
		}
		return copy(data, h.dev.hubDesc), nil

	case rType == dirIn && request == requestGetDescriptor && val>>8 == descTypeBOS:
		if h.dev.bos == nil {
			return 0, fmt.Errorf("fake: %s has no BOS descriptor", &h.dev.info)
		}
		return copy(data, h.dev.bos), nil

	case rType == dirIn|rtPort && request == requestGetStatus:
		if len(data) < 4 {
			return 0, fmt.Errorf("fake: status buffer too small")
		}
		binary.LittleEndian.PutUint16(data[0:2], h.dev.status[int(idx)])
		binary.LittleEndian.PutUint16(data[2:4], 0)
		return 4, nil

	case rType == rtPort && (request == requestSetFeature || request == requestClearFeature):
		h.enum.log = append(h.enum.log, transferRecord{
			bus: h.dev.info.Bus, address: h.dev.info.Address,
			request: request, feature: val, port: int(idx),
		})
		if val == featPortPower {
			bit := uint16(portStatPower)
			if h.dev.info.Spec >= USB30 {
				bit = portStatSSPower
			}
			if h.dev.status == nil {
				h.dev.status = make(map[int]uint16)
			}
			if request == requestSetFeature {
				h.dev.status[int(idx)] |= bit
			} else {
				h.dev.status[int(idx)] &^= bit
			}
		}
		return 0, nil
	}
	return 0, fmt.Errorf("fake: unsupported control request %02x/%02x", rType, request)
}

func (h *fakeHandle) Manufacturer() (string, error) { return h.dev.manufacturer, nil }
func (h *fakeHandle) Product() (string, error)      { return h.dev.product, nil }
func (h *fakeHandle) SerialNumber() (string, error) { return h.dev.serial, nil }
func (h *fakeHandle) Reset() error                  { h.dev.resets++; return nil }
func (h *fakeHandle) Close() error                  { return nil }

// Logical power switching mode bits of wHubCharacteristics.
const (
	lpsmGanged     = 0x0000
	lpsmIndividual = 0x0001
	lpsmNone       = 0x0002
)

// hubDescBytes builds a hub class descriptor with the given port count and
// characteristics bits.
func hubDescBytes(ports int, characteristics uint16) []byte {
	b := make([]byte, 9)
	b[0] = byte(len(b))
	b[1] = descTypeHub
	b[2] = byte(ports)
	binary.LittleEndian.PutUint16(b[3:5], characteristics)
	b[5] = 50 // bPwrOn2PwrGood, 100 ms
	return b
}

// bosBytes wraps a Container ID capability into a BOS descriptor.
func bosBytes(containerID string) []byte {
	uuid, err := hex.DecodeString(containerID)
	if err != nil || len(uuid) != containerIDBytes {
		panic("fake: bad container ID " + containerID)
	}
	b := []byte{bosDescLen, descTypeBOS, 0, 0, 1}
	b = append(b, containerCapLen, descTypeDeviceCapability, capTypeContainerID, 0)
	b = append(b, uuid...)
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(b)))
	return b
}

// fakeHub builds a hub class device. An empty containerID leaves the device
// without a BOS descriptor.
func fakeHub(bus, addr int, path []int, spec BCD, vendor, product ID, ports int, characteristics uint16, containerID string) *fakeDevice {
	d := &fakeDevice{
		info: DeviceInfo{
			Bus: bus, Address: addr, Path: path,
			Spec: spec, Vendor: vendor, Product: product, Class: ClassHub,
		},
		hubDesc: hubDescBytes(ports, characteristics),
		status:  make(map[int]uint16),
	}
	if containerID != "" {
		d.bos = bosBytes(containerID)
	}
	return d
}

// fakePeripheral builds a plain non-hub device.
func fakePeripheral(bus, addr int, path []int, vendor, product ID, name string) *fakeDevice {
	return &fakeDevice{
		info: DeviceInfo{
			Bus: bus, Address: addr, Path: path,
			Spec: USB20, Vendor: vendor, Product: product, Class: 0xff,
		},
		product: name,
	}
}

// findHub looks a hub up by location in a catalog.
func findHub(c *Catalog, location string) *Hub {
	for _, h := range c.Hubs {
		if h.Location == location {
			return h
		}
	}
	return nil
}
