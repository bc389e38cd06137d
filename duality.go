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

import "strings"

// A physical USB3 hub enumerates as two logical hubs, one USB2 and one
// USB3, sharing a Container ID. Powering a downstream port off reliably
// requires acting on both personalities, so for every directly selected hub
// the resolver finds its other-generation sibling and marks it actionable
// too.
//
// Candidates are ranked on a strictly increasing score ladder; among equal
// scores the first candidate wins. The catalog is capped at maxHubs, so the
// quadratic search is fine.
func resolveDuals(hubs []*Hub, portableBusNumbers bool) {
	for _, a := range hubs {
		if a.Actionable != ActionableDirect || a.ContainerID == "" {
			continue
		}
		var best *Hub
		bestScore := 0
		for _, b := range hubs {
			if s := dualityScore(a, b, portableBusNumbers); s > bestScore {
				best, bestScore = b, s
			}
		}
		if best == nil {
			continue
		}
		a.Dual = best
		if best.Actionable == NotActionable {
			best.Actionable = ActionableDual
		}
	}
}

// dualityScore rates b as the dual personality of a. Zero means b is not a
// plausible dual at all; 1 through 5 rank increasingly specific topology
// agreement.
func dualityScore(a, b *Hub, portableBusNumbers bool) int {
	if a == b || a.SuperSpeed == b.SuperSpeed {
		return 0
	}
	if b.ContainerID == "" || !strings.EqualFold(a.ContainerID, b.ContainerID) {
		return 0
	}
	// Guards against hardware shipping one hardcoded container ID across
	// distinct products.
	if a.Serial != "" && b.Serial != "" && a.Serial != b.Serial {
		return 0
	}
	// Port counts normally match. Compound hubs legitimately expose
	// different counts per generation; tolerate that for non-trivial
	// sizes only.
	if a.Ports != b.Ports && a.Ports+b.Ports <= 3 {
		return 0
	}

	score := 1
	ap, bp := a.Device.Path, b.Device.Path
	if len(ap) == len(bp) && tailEqual(ap, bp) {
		// Same position, only the root-level port number differs
		// between personalities.
		score = 2
	}
	if len(ap)+ssOffset(a) == len(bp)+ssOffset(b) && chainOffsetAligned(ap, bp) {
		// One vendor parks the USB2 personality one level deeper than
		// its USB3 sibling.
		score = 3
	}
	if pathEqual(ap, bp) {
		score = 4
		if !portableBusNumbers && a.Device.Bus-ssOffset(a) == b.Device.Bus-ssOffset(b) {
			// Linux numbers the USB2 bus of a controller one
			// below its USB3 bus.
			score = 5
		}
	}
	return score
}

func ssOffset(h *Hub) int {
	if h.SuperSpeed {
		return 1
	}
	return 0
}

// tailEqual reports whether a and b are identical in every entry except
// possibly the first. Both must have the same length.
func tailEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 1; i < len(a); i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// chainOffsetAligned reports whether the longer of the two chains equals the
// shorter one after dropping its first hop.
func chainOffsetAligned(a, b []int) bool {
	long, short := a, b
	if len(b) > len(a) {
		long, short = b, a
	}
	if len(long) != len(short)+1 {
		return false
	}
	return pathEqual(long[1:], short)
}
