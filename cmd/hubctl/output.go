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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/hubctl/hubctl"
)

var (
	headerColor = color.New(color.Bold)
	powerColor  = color.New(color.FgGreen)
	offColor    = color.New(color.FgYellow)
)

func usbGeneration(h *hubctl.Hub) string {
	if h.SuperSpeed {
		return "USB3"
	}
	return "USB2"
}

func printHubHeader(w io.Writer, prefix string, hub *hubctl.Hub) {
	headerColor.Fprintf(w, "%s hub %s [%s, %s, %d ports, %s]\n",
		prefix, hub.Location, hub.Description, usbGeneration(hub), hub.Ports, hub.PowerSwitching)
}

func printPorts(w io.Writer, enum hubctl.Enumerator, act *hubctl.Actuator, hub *hubctl.Hub, ports hubctl.PortMask, devs []*hubctl.DeviceInfo) {
	reports, err := act.Status(hub, ports)
	for _, r := range reports {
		flags := r.Status.Describe(hub.SuperSpeed)
		c := offColor
		if r.Status.Powered(hub.SuperSpeed) {
			c = powerColor
		}
		line := fmt.Sprintf("  Port %d: %04x %s", r.Port, r.Status.Status, flags)
		if r.Status.Connected() {
			if name := attachedDescription(enum, hub, r.Port, devs); name != "" {
				line += " [" + name + "]"
			}
		}
		c.Fprintln(w, line)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read all port statuses of hub %s: %v\n", hub.Location, err)
	}
}

// attachedDescription names the device plugged into the given port, if the
// snapshot has one there.
func attachedDescription(enum hubctl.Enumerator, hub *hubctl.Hub, port int, devs []*hubctl.DeviceInfo) string {
	for _, dev := range devs {
		if hub.AttachedPort(dev) == port {
			return hubctl.DescribeDevice(enum, dev)
		}
	}
	return ""
}

type hubJSON struct {
	Location       string     `json:"location"`
	Description    string     `json:"description"`
	USB            string     `json:"usb"`
	NumPorts       int        `json:"nports"`
	PowerSwitching string     `json:"power_switching"`
	Derived        bool       `json:"derived,omitempty"`
	Ports          []portJSON `json:"ports"`
}

type portJSON struct {
	Port   int    `json:"port"`
	Status string `json:"status"`
	Flags  string `json:"flags"`
	Device string `json:"device,omitempty"`
}

func writeJSON(w io.Writer, enum hubctl.Enumerator, act *hubctl.Actuator, cat *hubctl.Catalog, devs []*hubctl.DeviceInfo) error {
	out := make([]hubJSON, 0, len(cat.Actionable()))
	for _, hub := range cat.Actionable() {
		hj := hubJSON{
			Location:       hub.Location,
			Description:    hub.Description,
			USB:            usbGeneration(hub),
			NumPorts:       hub.Ports,
			PowerSwitching: hub.PowerSwitching.String(),
			Derived:        hub.Actionable == hubctl.ActionableDual,
		}
		reports, err := act.Status(hub, cat.Ports)
		if err != nil {
			return err
		}
		for _, r := range reports {
			pj := portJSON{
				Port:   r.Port,
				Status: fmt.Sprintf("%04x", r.Status.Status),
				Flags:  r.Status.Describe(hub.SuperSpeed),
			}
			if r.Status.Connected() {
				pj.Device = attachedDescription(enum, hub, r.Port, devs)
			}
			hj.Ports = append(hj.Ports, pj)
		}
		out = append(out, hj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
