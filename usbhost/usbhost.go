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

// Package usbhost implements hubctl's Enumerator on top of libusb via
// github.com/google/gousb.
package usbhost

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/hubctl/hubctl"
)

// controlTimeout bounds every control transfer issued through a handle.
const controlTimeout = 5000 * time.Millisecond

// Host is an Enumerator backed by a libusb context. It must be closed after
// use.
type Host struct {
	ctx *gousb.Context
}

// New initializes a libusb context.
func New() *Host {
	return &Host{ctx: gousb.NewContext()}
}

// Close releases the libusb context.
func (h *Host) Close() error {
	return h.ctx.Close()
}

// Devices takes a snapshot of every device on the bus. No device is opened;
// only cached descriptors are read. Devices whose descriptors cannot be read
// are skipped.
func (h *Host) Devices() ([]*hubctl.DeviceInfo, error) {
	var infos []*hubctl.DeviceInfo
	_, err := h.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		infos = append(infos, &hubctl.DeviceInfo{
			Bus:     desc.Bus,
			Address: desc.Address,
			Path:    append([]int(nil), desc.Path...),
			Spec:    hubctl.BCD(desc.Spec),
			Vendor:  hubctl.ID(desc.Vendor),
			Product: hubctl.ID(desc.Product),
			Class:   hubctl.Class(desc.Class),
		})
		return false
	})
	// Per-device descriptor errors are tolerated; the rest of the
	// snapshot is still usable.
	if err != nil && len(infos) == 0 {
		return nil, translate(err)
	}
	return infos, nil
}

// Open opens the device at the snapshot entry's bus address for control
// transfer I/O.
func (h *Host) Open(info *hubctl.DeviceInfo) (hubctl.DeviceHandle, error) {
	devs, err := h.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == info.Bus && desc.Address == info.Address
	})
	if len(devs) == 0 {
		if err != nil {
			return nil, translate(err)
		}
		return nil, fmt.Errorf("usbhost: device %s is gone", info)
	}
	// close extras; a (bus, address) pair identifies one device
	for _, d := range devs[1:] {
		d.Close()
	}
	dev := devs[0]
	dev.ControlTimeout = controlTimeout
	return &handle{dev: dev}, nil
}

// translate maps gousb error codes onto hubctl's error taxonomy.
func translate(err error) error {
	if errors.Is(err, gousb.ErrorAccess) {
		return fmt.Errorf("%w: %v", hubctl.ErrAccessDenied, err)
	}
	return err
}

type handle struct {
	dev *gousb.Device
}

func (h *handle) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	n, err := h.dev.Control(rType, request, val, idx, data)
	if err != nil {
		return n, translate(err)
	}
	return n, nil
}

func (h *handle) Manufacturer() (string, error) { return h.dev.Manufacturer() }
func (h *handle) Product() (string, error)      { return h.dev.Product() }
func (h *handle) SerialNumber() (string, error) { return h.dev.SerialNumber() }

func (h *handle) Reset() error {
	return h.dev.Reset()
}

func (h *handle) Close() error {
	return h.dev.Close()
}
