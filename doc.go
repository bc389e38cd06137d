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

// Package hubctl discovers USB hubs that support per-port power switching
// and turns power on individual downstream ports on and off.
//
// Discovery walks an already-enumerated USB device snapshot, reads hub class
// descriptors to find hubs with individual power switching, builds the
// canonical bus/port location path for each of them, and pairs up the USB2
// and USB3 personalities that a single physical USB3 hub presents to the
// host. Power changes are plain hub class control requests.
//
// The package never talks to libusb directly. All bus access goes through
// the Enumerator interface; the usbhost package provides the real
// implementation on top of github.com/google/gousb, and tests substitute a
// fake.
package hubctl
