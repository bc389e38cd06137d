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
	"bytes"
	"encoding/binary"
	"encoding/hex"
)

// Descriptor structs based on USB 2.0 spec section 11.23 and USB 3.0 spec
// sections 10.13.2 and 9.6.2.

const (
	descTypeBOS              = 0x0f
	descTypeDeviceCapability = 0x10
	descTypeHub              = 0x29
	descTypeSuperSpeedHub    = 0x2a

	capTypeContainerID = 0x04

	// hubDescMinLen covers the hub descriptor prefix through
	// bHubContrCurrent; everything past it is variable-length and unused
	// here.
	hubDescMinLen = 7

	bosDescLen       = 5
	containerCapLen  = 20
	containerIDBytes = 16
)

// PowerSwitching is the logical power switching mode a hub reports in its
// wHubCharacteristics field.
type PowerSwitching uint8

const (
	// PowerSwitchingGanged switches power of all ports together.
	PowerSwitchingGanged PowerSwitching = iota
	// PowerSwitchingIndividual switches each port independently.
	PowerSwitchingIndividual
	// PowerSwitchingNone means the hub cannot switch port power at all.
	PowerSwitchingNone
)

// String describes the power switching mode.
func (p PowerSwitching) String() string {
	switch p {
	case PowerSwitchingGanged:
		return "ganged"
	case PowerSwitchingIndividual:
		return "ppps"
	default:
		return "nops"
	}
}

// decoded hub descriptor prefix, 7 bytes
type usbHubDescriptor struct {
	BDescLength         uint8  // 0
	BDescriptorType     uint8  // 1
	BNbrPorts           uint8  // 2
	WHubCharacteristics uint16 // 3:4
	BPwrOn2PwrGood      uint8  // 5
	BHubContrCurrent    uint8  // 6
}

// wHubCharacteristics masks, USB 2.0 table 11-13.
const (
	hubCharLPSM     = 0x0003 // logical power switching mode
	hubCharCompound = 0x0004 // hub is part of a compound device
	hubCharOCPM     = 0x0018 // over-current protection mode
)

// hubDescriptor is the decoded part of a hub class descriptor that discovery
// cares about.
type hubDescriptor struct {
	ports          int
	powerSwitching PowerSwitching
	compound       bool
	powerOnGood    int // time until power on a port is good, in ms
}

func parseHubDescriptor(descBytes []byte) (*hubDescriptor, error) {
	if len(descBytes) < hubDescMinLen {
		return nil, &DescriptorError{Got: len(descBytes), Want: hubDescMinLen}
	}
	d := &usbHubDescriptor{}
	b := bytes.NewReader(descBytes[:hubDescMinLen])
	if err := binary.Read(b, binary.LittleEndian, d); err != nil {
		return nil, err
	}
	h := &hubDescriptor{
		ports:       int(d.BNbrPorts),
		compound:    d.WHubCharacteristics&hubCharCompound != 0,
		powerOnGood: 2 * int(d.BPwrOn2PwrGood),
	}
	switch d.WHubCharacteristics & hubCharLPSM {
	case 0:
		h.powerSwitching = PowerSwitchingGanged
	case 1:
		h.powerSwitching = PowerSwitchingIndividual
	default:
		h.powerSwitching = PowerSwitchingNone
	}
	return h, nil
}

// readHubDescriptor requests the hub class descriptor. Devices at USB 3.0 or
// above take the SuperSpeed variant, everything older the legacy one.
func readHubDescriptor(h DeviceHandle, superSpeed bool) (*hubDescriptor, error) {
	descType := uint16(descTypeHub)
	if superSpeed {
		descType = descTypeSuperSpeedHub
	}
	buf := make([]byte, 256)
	n, err := h.Control(dirIn|rtHub, requestGetDescriptor, descType<<8, 0, buf)
	if err != nil {
		return nil, err
	}
	return parseHubDescriptor(buf[:n])
}

// parseContainerID walks the device capabilities of a BOS descriptor and
// returns the Container ID UUID as a lowercase hex string.
func parseContainerID(b []byte) (string, bool) {
	if len(b) < bosDescLen || b[1] != descTypeBOS {
		return "", false
	}
	if total := int(binary.LittleEndian.Uint16(b[2:4])); total < len(b) {
		b = b[:total]
	}
	off := int(b[0])
	for off+3 <= len(b) {
		capLen := int(b[off])
		if capLen < 3 || off+capLen > len(b) {
			break
		}
		if b[off+1] == descTypeDeviceCapability && b[off+2] == capTypeContainerID && capLen >= containerCapLen {
			// bReserved at offset 3, UUID at 4..19
			return hex.EncodeToString(b[off+4 : off+4+containerIDBytes]), true
		}
		off += capLen
	}
	return "", false
}

// readContainerID reads the BOS descriptor and extracts the Container ID
// capability. Devices without a BOS descriptor return an error from the
// control transfer; devices with a BOS but no Container ID return "".
func readContainerID(h DeviceHandle) (string, error) {
	buf := make([]byte, 256)
	n, err := h.Control(dirIn, requestGetDescriptor, descTypeBOS<<8, 0, buf)
	if err != nil {
		return "", err
	}
	id, _ := parseContainerID(buf[:n])
	return id, nil
}
