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
	"reflect"
	"testing"
)

// actionableLocations lists the locations of the actionable hubs, in catalog
// order.
func actionableLocations(c *Catalog) []string {
	var out []string
	for _, h := range c.Actionable() {
		out = append(out, h.Location)
	}
	return out
}

func TestDiscoverSwitchingModes(t *testing.T) {
	f := newFakeEnumerator(
		fakeHub(1, 2, []int{1}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, ""),
		fakeHub(1, 3, []int{2}, USB20, 0x05e3, 0x0610, 4, lpsmGanged, ""),
		fakeHub(1, 4, []int{3}, USB20, 0x0424, 0x2514, 4, lpsmNone, ""),
		fakePeripheral(1, 5, []int{4}, 0x0403, 0x6001, "FT232R"),
	)

	cat, err := Discover(f, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got, want := actionableLocations(cat), []string{"1-1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("actionable hubs: got %v, want %v", got, want)
	}

	cat, err = Discover(f, Options{Force: true})
	if err != nil {
		t.Fatalf("Discover with Force: %v", err)
	}
	if got, want := actionableLocations(cat), []string{"1-1", "1-2", "1-3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("actionable hubs with Force: got %v, want %v", got, want)
	}
}

func TestDiscoverOnePortGanged(t *testing.T) {
	// Ganged switching over a single port is per-port switching.
	f := newFakeEnumerator(fakeHub(1, 2, []int{1}, USB20, 0x05e3, 0x0610, 1, lpsmGanged, ""))
	cat, err := Discover(f, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cat.Hubs) != 1 {
		t.Fatalf("got %d hubs, want 1", len(cat.Hubs))
	}
	if got := cat.Hubs[0].PowerSwitching; got != PowerSwitchingIndividual {
		t.Errorf("power switching: got %v, want %v", got, PowerSwitchingIndividual)
	}
}

func TestDiscoverPermissionProblem(t *testing.T) {
	denied := fakeHub(1, 2, []int{1}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, "")
	denied.openErr = ErrAccessDenied
	f := newFakeEnumerator(
		denied,
		fakeHub(1, 3, []int{2}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, ""),
	)

	cat, err := Discover(f, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !cat.PermissionProblem {
		t.Error("PermissionProblem not set after a denied open")
	}
	if got, want := actionableLocations(cat), []string{"1-2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("actionable hubs: got %v, want %v", got, want)
	}
}

func TestDiscoverSkipsBadDescriptors(t *testing.T) {
	short := fakeHub(1, 2, []int{1}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, "")
	short.hubDesc = short.hubDesc[:3]
	f := newFakeEnumerator(
		short,
		fakeHub(1, 3, []int{2}, USB20, 0x2109, 0x0813, 0, lpsmIndividual, ""),
		fakeHub(1, 4, []int{3}, USB20, 0x2109, 0x0813, 15, lpsmIndividual, ""),
		fakeHub(1, 5, []int{4}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, ""),
	)

	cat, err := Discover(f, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got, want := actionableLocations(cat), []string{"1-4"}; !reflect.DeepEqual(got, want) {
		t.Errorf("actionable hubs: got %v, want %v", got, want)
	}
	if cat.PermissionProblem {
		t.Error("PermissionProblem set by malformed descriptors")
	}
}

func TestDiscoverTruncates(t *testing.T) {
	var devs []*fakeDevice
	for i := 0; i < maxHubs+2; i++ {
		devs = append(devs, fakeHub(1, i+1, []int{i + 1}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, ""))
	}
	cat, err := Discover(newFakeEnumerator(devs...), Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cat.Hubs) != maxHubs {
		t.Errorf("got %d hubs, want %d", len(cat.Hubs), maxHubs)
	}
	if !cat.Truncated {
		t.Error("Truncated not set")
	}
}

func TestSelectFilters(t *testing.T) {
	newEnum := func() *fakeEnumerator {
		root := fakeHub(1, 1, nil, USB20, 0x1d6b, 0x0002, 2, lpsmIndividual, "")
		via := fakeHub(1, 2, []int{2}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, "")
		via.product = "USB2.0 Hub"
		genesys := fakeHub(1, 3, []int{2, 1}, USB20, 0x05e3, 0x0610, 4, lpsmIndividual, "")
		return newFakeEnumerator(root, via, genesys)
	}

	for _, tc := range []struct {
		desc string
		opts Options
		want []string
	}{
		{"no filters", Options{}, []string{"1", "1-2", "1-2.1"}},
		{"location", Options{Location: "1-2"}, []string{"1-2"}},
		{"location case fold", Options{Location: "1-2.1"}, []string{"1-2.1"}},
		{"location no match", Options{Location: "2-1"}, nil},
		{"level 1", Options{Level: 1}, []string{"1"}},
		{"level 2", Options{Level: 2}, []string{"1-2"}},
		{"level 3", Options{Level: 3}, []string{"1-2.1"}},
		{"vendor prefix", Options{Vendor: "2109"}, []string{"1-2"}},
		{"vendor full", Options{Vendor: "05e3:0610"}, []string{"1-2.1"}},
		{"vendor no match", Options{Vendor: "dead"}, nil},
		{"hub description", Options{SearchHub: "USB2.0"}, []string{"1-2"}},
		{"combined", Options{Level: 2, Vendor: "2109"}, []string{"1-2"}},
		{"combined mismatch", Options{Level: 3, Vendor: "2109"}, nil},
	} {
		cat, err := Discover(newEnum(), tc.opts)
		if err != nil {
			t.Fatalf("%s: Discover: %v", tc.desc, err)
		}
		if got := actionableLocations(cat); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: actionable hubs: got %v, want %v", tc.desc, got, tc.want)
		}
	}
}

func TestSearchDeviceNarrowsPorts(t *testing.T) {
	f := newFakeEnumerator(
		fakeHub(1, 2, []int{1}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, ""),
		fakeHub(1, 4, []int{2}, USB20, 0x05e3, 0x0610, 4, lpsmIndividual, ""),
		fakePeripheral(1, 3, []int{1, 3}, 0x0403, 0x6001, "FT232R USB UART"),
	)

	ports, err := ParsePorts("1-2")
	if err != nil {
		t.Fatalf("ParsePorts: %v", err)
	}
	cat, err := Discover(f, Options{SearchDevice: "FT232R", Ports: ports})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got, want := actionableLocations(cat), []string{"1-1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("actionable hubs: got %v, want %v", got, want)
	}
	// the match overrides the requested port selection with the port the
	// device occupies
	if got, want := cat.Ports, PortMask(1)<<2; got != want {
		t.Errorf("effective ports: got %#x, want %#x", got, want)
	}
}

func TestSearchDeviceLastMatchWins(t *testing.T) {
	f := newFakeEnumerator(
		fakeHub(1, 2, []int{1}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, ""),
		fakePeripheral(1, 3, []int{1, 2}, 0x0403, 0x6001, "FT232R USB UART"),
		fakePeripheral(1, 5, []int{1, 4}, 0x0403, 0x6001, "FT232R USB UART"),
	)
	cat, err := Discover(f, Options{SearchDevice: "FT232R"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got, want := cat.Ports, PortMask(1)<<3; got != want {
		t.Errorf("effective ports: got %#x, want %#x", got, want)
	}
}

func TestHubDescription(t *testing.T) {
	hub := fakeHub(1, 2, []int{1}, USB20, 0x2109, 0x0813, 4, lpsmIndividual, "")
	hub.manufacturer = "VIA Labs, Inc."
	hub.product = "USB2.0 Hub"
	f := newFakeEnumerator(hub)

	cat, err := Discover(f, Options{})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cat.Hubs) != 1 {
		t.Fatalf("got %d hubs, want 1", len(cat.Hubs))
	}
	if got, want := cat.Hubs[0].Description, "2109:0813 VIA Labs, Inc. USB2.0 Hub"; got != want {
		t.Errorf("description: got %q, want %q", got, want)
	}
}

func TestPortsMask(t *testing.T) {
	h := &Hub{Ports: 4}
	if got, want := h.PortsMask(), PortMask(0x0f); got != want {
		t.Errorf("PortsMask: got %#x, want %#x", got, want)
	}
}
