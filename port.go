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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// wPortStatus bits, USB 2.0 table 11-21.
const (
	portStatConnection  = 0x0001
	portStatEnable      = 0x0002
	portStatSuspend     = 0x0004
	portStatOvercurrent = 0x0008
	portStatReset       = 0x0010
	portStatL1          = 0x0020
	portStatPower       = 0x0100
	portStatLowSpeed    = 0x0200
	portStatHighSpeed   = 0x0400
	portStatTest        = 0x0800
	portStatIndicator   = 0x1000
)

// SuperSpeed ports lay the field out differently, USB 3.0 table 10-10.
const (
	portStatSSLinkState = 0x01e0
	portStatSSPower     = 0x0200
	portStatSSSpeed     = 0x1c00
)

// PortStatus is the instantaneous status of one hub port. It is read on
// demand and never cached.
type PortStatus struct {
	Status uint16 // wPortStatus
	Change uint16 // wPortChange
}

// Powered reports whether port power is on. The power bit sits in a
// different position on SuperSpeed ports.
func (s PortStatus) Powered(superSpeed bool) bool {
	if superSpeed {
		return s.Status&portStatSSPower != 0
	}
	return s.Status&portStatPower != 0
}

// Connected reports whether a device is attached to the port.
func (s PortStatus) Connected() bool {
	return s.Status&portStatConnection != 0
}

// busy reports whether anything besides the power bit is set; a port with a
// bare power bit has no device behind it fighting power changes.
func (s PortStatus) busy(superSpeed bool) bool {
	mask := uint16(portStatPower)
	if superSpeed {
		mask = portStatSSPower
	}
	return s.Status&^mask != 0
}

// Describe lists the set status flags the way the kernel ch11 names them.
func (s PortStatus) Describe(superSpeed bool) string {
	var parts []string
	add := func(mask uint16, name string) {
		if s.Status&mask != 0 {
			parts = append(parts, name)
		}
	}
	if superSpeed {
		add(portStatSSPower, "power")
		add(portStatReset, "reset")
		add(portStatOvercurrent, "oc")
		if s.Status&portStatConnection != 0 && s.Status&portStatSSSpeed == 0 {
			parts = append(parts, "5gbps")
		}
		add(portStatEnable, "enable")
		add(portStatConnection, "connect")
	} else {
		add(portStatIndicator, "indicator")
		add(portStatTest, "test")
		add(portStatHighSpeed, "highspeed")
		add(portStatLowSpeed, "lowspeed")
		add(portStatPower, "power")
		add(portStatReset, "reset")
		add(portStatOvercurrent, "oc")
		add(portStatSuspend, "suspend")
		add(portStatEnable, "enable")
		add(portStatConnection, "connect")
	}
	if s.Status == 0 {
		parts = append(parts, "off")
	}
	return strings.Join(parts, " ")
}

// PortMask is a bitmap of 1-based port numbers, bit 0 for port 1.
type PortMask uint

// AllPorts selects every port a hub can have.
const AllPorts = PortMask(1<<maxHubPorts) - 1

// Has reports whether port is selected.
func (m PortMask) Has(port int) bool {
	return port >= 1 && port <= maxHubPorts && m&(PortMask(1)<<(port-1)) != 0
}

// Ports lists the selected port numbers in ascending order.
func (m PortMask) Ports() []int {
	var out []int
	for p := 1; p <= maxHubPorts; p++ {
		if m.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// ParsePorts parses a port list like "2", "2,4" or "2-5,7". "all" or the
// empty string select every port.
func ParsePorts(s string) (PortMask, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return AllPorts, nil
	}
	var m PortMask
	for _, field := range strings.Split(s, ",") {
		lo, hi, ok := strings.Cut(field, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || first < 1 || first > maxHubPorts {
			return 0, fmt.Errorf("hubctl: ports must be 1 to %d, got %q", maxHubPorts, field)
		}
		last := first
		if ok {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || last < first || last > maxHubPorts {
				return 0, fmt.Errorf("hubctl: bad port range %q", field)
			}
		}
		for p := first; p <= last; p++ {
			m |= PortMask(1) << (p - 1)
		}
	}
	return m, nil
}

// PowerAction selects what to do with port power.
type PowerAction int

const (
	// ActionKeep performs no power change, status is only read.
	ActionKeep PowerAction = iota
	// ActionOff powers selected ports off.
	ActionOff
	// ActionOn powers selected ports on.
	ActionOn
	// ActionCycle powers ports off, waits, then powers them back on.
	ActionCycle
	// ActionToggle flips each port to the opposite of its current state.
	ActionToggle
	// ActionFlash drives ports off and back on unconditionally, even if
	// the hub claims they are already in the requested state.
	ActionFlash
)

// String names the action the way the CLI spells it.
func (a PowerAction) String() string {
	switch a {
	case ActionOff:
		return "off"
	case ActionOn:
		return "on"
	case ActionCycle:
		return "cycle"
	case ActionToggle:
		return "toggle"
	case ActionFlash:
		return "flash"
	default:
		return "keep"
	}
}

// ParseAction parses an action name or its numeric alias (0=off, 1=on,
// 2=cycle, 3=toggle, 4=flash).
func ParseAction(s string) (PowerAction, error) {
	switch strings.ToLower(s) {
	case "", "keep":
		return ActionKeep, nil
	case "off", "0":
		return ActionOff, nil
	case "on", "1":
		return ActionOn, nil
	case "cycle", "2":
		return ActionCycle, nil
	case "toggle", "3":
		return ActionToggle, nil
	case "flash", "4":
		return ActionFlash, nil
	}
	return ActionKeep, fmt.Errorf("hubctl: unknown action %q", s)
}

// Default actuation timing.
const (
	// DefaultWait separates repeated power-off requests.
	DefaultWait = 20 * time.Millisecond
	// DefaultDelay separates the off and on phases of cycle and flash.
	DefaultDelay = 2 * time.Second
	// ssSettleDelay is how long a SuperSpeed hub takes after an off
	// request before it reliably reports power removed.
	ssSettleDelay = 500 * time.Millisecond
)

// Actuator issues port power changes on discovered hubs.
type Actuator struct {
	Enum Enumerator

	// Repeat is how many times a power-off request is sent per port.
	// Some devices re-assert power immediately and need several
	// requests in quick succession to stay off.
	Repeat int

	// Wait separates repeated off requests.
	Wait time.Duration

	// Delay separates the off and on phases of cycle and flash.
	Delay time.Duration

	// Settle is the extra wait after powering off SuperSpeed ports.
	Settle time.Duration

	// Reset requests a logical USB reset of the hub after ports were
	// powered on, re-enumerating everything downstream.
	Reset bool
}

// NewActuator returns an Actuator with the default timing.
func NewActuator(enum Enumerator) *Actuator {
	return &Actuator{
		Enum:   enum,
		Repeat: 1,
		Wait:   DefaultWait,
		Delay:  DefaultDelay,
		Settle: ssSettleDelay,
	}
}

// PortReport is the status of one port at the time it was read.
type PortReport struct {
	Port   int
	Status PortStatus
}

// portStatus reads the status of a single port over an open hub handle.
func portStatus(h DeviceHandle, port int) (PortStatus, error) {
	buf := make([]byte, 4)
	n, err := h.Control(dirIn|rtPort, requestGetStatus, 0, uint16(port), buf)
	if err != nil {
		return PortStatus{}, fmt.Errorf("hubctl: port %d status: %w", port, err)
	}
	if n < 4 {
		return PortStatus{}, fmt.Errorf("hubctl: port %d status: short read of %d bytes", port, n)
	}
	return PortStatus{
		Status: binary.LittleEndian.Uint16(buf[0:2]),
		Change: binary.LittleEndian.Uint16(buf[2:4]),
	}, nil
}

// Status reads the current status of the selected ports of hub.
func (a *Actuator) Status(hub *Hub, ports PortMask) ([]PortReport, error) {
	h, err := a.Enum.Open(hub.Device)
	if err != nil {
		return nil, fmt.Errorf("hubctl: open %s: %w", hub.Location, err)
	}
	defer h.Close()

	var out []PortReport
	for port := 1; port <= hub.Ports; port++ {
		if !ports.Has(port) {
			continue
		}
		st, err := portStatus(h, port)
		if err != nil {
			return out, err
		}
		out = append(out, PortReport{Port: port, Status: st})
	}
	return out, nil
}

// Run performs action on every actionable hub of the catalog. Power-changing
// actions are refused when more than one physical hub is selected; acting on
// several hubs at once risks hitting the wrong one. Status-only invocations
// have no such restriction.
func (a *Actuator) Run(cat *Catalog, action PowerAction) error {
	if action == ActionKeep {
		return nil
	}
	if cat.PhysicalCount() > 1 {
		return ErrAmbiguousAction
	}
	var errs []error
	for _, hub := range cat.Actionable() {
		if err := a.Apply(hub, cat.Ports, action); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply performs action on the selected ports of one hub. Port power runs
// in up to two phases, off then on; each phase checks the current port
// status first and skips ports already in the desired state, so repeating
// an action is a no-op. Toggle decides from the state before the first
// phase and sends exactly one request per port; flash skips nothing.
//
// Failures on individual ports are collected and do not stop the remaining
// ports.
func (a *Actuator) Apply(hub *Hub, ports PortMask, action PowerAction) error {
	if action == ActionKeep {
		return nil
	}
	h, err := a.Enum.Open(hub.Device)
	if err != nil {
		return fmt.Errorf("hubctl: open %s: %w", hub.Location, err)
	}
	defer h.Close()

	ports &= hub.PortsMask()

	var initial [maxHubPorts + 1]bool
	if action == ActionToggle {
		for port := 1; port <= hub.Ports; port++ {
			if !ports.Has(port) {
				continue
			}
			st, err := portStatus(h, port)
			if err != nil {
				return err
			}
			initial[port] = st.Powered(hub.SuperSpeed)
		}
	}

	var errs []error
	for phase := 0; phase < 2; phase++ {
		off := phase == 0
		if off && action == ActionOn {
			continue
		}
		if !off && action == ActionOff {
			continue
		}
		request := uint8(requestSetFeature)
		if off {
			request = requestClearFeature
		}

		sent := false
		for port := 1; port <= hub.Ports; port++ {
			if !ports.Has(port) {
				continue
			}
			st, err := portStatus(h, port)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			powered := st.Powered(hub.SuperSpeed)

			switch action {
			case ActionOff, ActionOn, ActionCycle:
				// already in the desired state
				if off != powered {
					continue
				}
			case ActionToggle:
				if off != initial[port] {
					continue
				}
			case ActionFlash:
				// always drives both phases
			}

			repeat := 1
			if off && st.busy(hub.SuperSpeed) {
				repeat = max(a.Repeat, 1)
			}
			for i := 0; i < repeat; i++ {
				if _, err := h.Control(rtPort, request, featPortPower, uint16(port), nil); err != nil {
					errs = append(errs, fmt.Errorf("hubctl: port %d power %s: %w", port, actionForPhase(off), err))
				}
				if i+1 < repeat {
					time.Sleep(a.Wait)
				}
			}
			sent = true
		}

		if off && sent {
			if hub.SuperSpeed && a.Settle > 0 {
				time.Sleep(a.Settle)
			}
			if action == ActionCycle || action == ActionFlash {
				time.Sleep(a.Delay)
			}
		}
	}

	if action != ActionOff && a.Reset {
		if err := h.Reset(); err != nil {
			errs = append(errs, fmt.Errorf("hubctl: reset %s: %w", hub.Location, err))
		}
	}
	return errors.Join(errs...)
}

func actionForPhase(off bool) PowerAction {
	if off {
		return ActionOff
	}
	return ActionOn
}
