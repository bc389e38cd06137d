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

import "testing"

func TestLocation(t *testing.T) {
	for _, tc := range []struct {
		bus  int
		path []int
		want string
	}{
		{1, nil, "1"},
		{3, []int{1}, "3-1"},
		{3, []int{1, 4}, "3-1.4"},
		{2, []int{7, 3, 1}, "2-7.3.1"},
		// chains deeper than USB hubs can nest are cut off
		{2, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, "2-1.2.3.4.5.6.7.8"},
	} {
		if got := Location(tc.bus, tc.path); got != tc.want {
			t.Errorf("Location(%d, %v): got %q, want %q", tc.bus, tc.path, got, tc.want)
		}
	}
}

func TestDirectChild(t *testing.T) {
	hub := &DeviceInfo{Bus: 1, Path: []int{2}}
	for _, tc := range []struct {
		desc string
		dev  *DeviceInfo
		want bool
	}{
		{"child one level down", &DeviceInfo{Bus: 1, Path: []int{2, 3}}, true},
		{"other branch", &DeviceInfo{Bus: 1, Path: []int{4, 3}}, false},
		{"grandchild", &DeviceInfo{Bus: 1, Path: []int{2, 3, 1}}, false},
		{"same depth", &DeviceInfo{Bus: 1, Path: []int{3}}, false},
		{"other bus", &DeviceInfo{Bus: 2, Path: []int{2, 3}}, false},
		{"the hub itself", hub, false},
	} {
		if got := directChild(hub, tc.dev); got != tc.want {
			t.Errorf("%s: directChild: got %v, want %v", tc.desc, got, tc.want)
		}
	}

	root := &DeviceInfo{Bus: 1}
	if !directChild(root, &DeviceInfo{Bus: 1, Path: []int{5}}) {
		t.Error("device on a root hub port not recognized as direct child")
	}
}

func TestAttachedPort(t *testing.T) {
	hub := &Hub{Device: &DeviceInfo{Bus: 1, Path: []int{2}}}
	if got := hub.AttachedPort(&DeviceInfo{Bus: 1, Path: []int{2, 3}}); got != 3 {
		t.Errorf("AttachedPort of direct child: got %d, want 3", got)
	}
	if got := hub.AttachedPort(&DeviceInfo{Bus: 1, Path: []int{4, 3}}); got != 0 {
		t.Errorf("AttachedPort of unrelated device: got %d, want 0", got)
	}
}
