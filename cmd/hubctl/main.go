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

// hubctl shows and controls per-port power on USB hubs that support power
// switching. Without an action it prints the status of every supported hub.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hubctl/hubctl"
	"github.com/hubctl/hubctl/usbhost"
)

const version = "1.0.0"

const permissionHint = `There were permission problems while accessing USB.
To fix this, run this tool as root, or add a udev rule like
  SUBSYSTEM=="usb", ATTR{idVendor}=="2109", MODE="0666"
to /etc/udev/rules.d/52-usb.rules, then run
  sudo udevadm trigger --attr-match=subsystem=usb`

type options struct {
	location  string
	level     int
	vendor    string
	search    string
	searchHub string
	ports     string
	action    string
	delay     float64
	repeat    int
	wait      int
	exact     bool
	force     bool
	reset     bool
	jsonOut   bool
	debugLog  bool
	config    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:     "hubctl",
		Short:   "control USB port power for smart hubs",
		Long:    "hubctl controls per-port power on USB hubs that support power switching.\nWithout an action it shows the status of all supported hubs.",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
		SilenceUsage: true,
	}

	bindFlags(cmd.Flags(), o)
	return cmd
}

func bindFlags(f *pflag.FlagSet, o *options) {
	f.StringVarP(&o.location, "location", "l", "", "select the hub at this location, e.g. 1-2.3")
	f.IntVarP(&o.level, "level", "L", 0, "select hubs at this topology level (1 = root)")
	f.StringVarP(&o.vendor, "vendor", "n", "", "select hubs by vendor id prefix, e.g. 2109 or 2109:0813")
	f.StringVarP(&o.search, "search", "s", "", "select hubs with an attached device matching this string")
	f.StringVar(&o.searchHub, "hub", "", "select hubs whose own description matches this string")
	f.StringVarP(&o.ports, "ports", "p", "all", "ports to operate on, e.g. 2 or 2,4 or 2-5")
	f.StringVarP(&o.action, "action", "a", "keep", "off, on, cycle, toggle or flash (0..4)")
	f.Float64VarP(&o.delay, "delay", "d", 2, "seconds between off and on for cycle and flash")
	f.IntVarP(&o.repeat, "repeat", "r", 1, "send the power off request this many times")
	f.IntVarP(&o.wait, "wait", "w", 20, "milliseconds between repeated power off requests")
	f.BoolVarP(&o.exact, "exact", "e", false, "do not pair USB2 and USB3 personalities of one hub")
	f.BoolVarP(&o.force, "force", "f", false, "include hubs with misdeclared power switching")
	f.BoolVarP(&o.reset, "reset", "R", false, "reset the hub after powering ports on")
	f.BoolVarP(&o.jsonOut, "json", "j", false, "print machine readable output")
	f.BoolVar(&o.debugLog, "debug", false, "log USB details to stderr")
	f.StringVar(&o.config, "config", "", "config file with option defaults (default ~/.hubctl.yaml)")
}

func run(cmd *cobra.Command, o *options) error {
	if err := applyConfig(cmd.Flags(), o); err != nil {
		return err
	}
	hubctl.SetDebug(o.debugLog)

	action, err := hubctl.ParseAction(o.action)
	if err != nil {
		return err
	}
	ports, err := hubctl.ParsePorts(o.ports)
	if err != nil {
		return err
	}

	host := usbhost.New()
	defer host.Close()
	return execute(host, o, action, ports, cmd)
}

func execute(enum hubctl.Enumerator, o *options, action hubctl.PowerAction, ports hubctl.PortMask, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cat, err := hubctl.Discover(enum, hubctl.Options{
		Location:     o.location,
		Level:        o.level,
		Vendor:       o.vendor,
		SearchDevice: o.search,
		SearchHub:    o.searchHub,
		Ports:        ports,
		Force:        o.force,
		Exact:        o.exact,
	})
	if err != nil {
		return err
	}
	if cat.Truncated {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: too many hubs, not all of them were scanned")
	}
	if cat.PhysicalCount() == 0 {
		msg := "no compatible smart hubs detected"
		if o.location != "" {
			msg += " at location " + o.location
		}
		if cat.PermissionProblem {
			msg += "\n" + permissionHint
		}
		return errors.New(msg)
	}

	act := hubctl.NewActuator(enum)
	act.Repeat = o.repeat
	act.Wait = time.Duration(o.wait) * time.Millisecond
	act.Delay = time.Duration(o.delay * float64(time.Second))
	act.Reset = o.reset

	// A second snapshot only feeds the attached-device column.
	devs, err := enum.Devices()
	if err != nil {
		return err
	}

	if o.jsonOut {
		if err := act.Run(cat, action); err != nil {
			return err
		}
		return writeJSON(out, enum, act, cat, devs)
	}

	for _, hub := range cat.Actionable() {
		printHubHeader(out, "Current status for", hub)
		printPorts(out, enum, act, hub, cat.Ports, devs)
	}
	if action == hubctl.ActionKeep {
		return nil
	}
	if err := act.Run(cat, action); err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent power %s request\n", action)
	for _, hub := range cat.Actionable() {
		printHubHeader(out, "New status for", hub)
		printPorts(out, enum, act, hub, cat.Ports, devs)
	}
	return nil
}
