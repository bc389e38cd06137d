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
	"errors"
	"fmt"
)

var (
	// ErrNotAHub reports that a device passed to the descriptor reader is
	// not a hub class device. This is a normal skip during scanning, not
	// a failure.
	ErrNotAHub = errors.New("hubctl: device is not a hub")

	// ErrAccessDenied reports that the host refused to open a device or
	// read its descriptors. Enumerator implementations translate their
	// native permission errors to this value so that discovery can tell
	// "no hardware" from "no access".
	ErrAccessDenied = errors.New("hubctl: access denied")

	// ErrAmbiguousAction reports that a power-changing action was
	// requested while more than one physical hub is selected.
	ErrAmbiguousAction = errors.New("hubctl: more than one hub selected, narrow the selection with a location filter")
)

// DescriptorError reports a hub descriptor read that returned fewer bytes
// than needed to parse it safely. The device is excluded from the catalog.
type DescriptorError struct {
	Got  int
	Want int
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("hubctl: hub descriptor too short: got %d bytes, want at least %d", e.Got, e.Want)
}
