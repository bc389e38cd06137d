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
	"io"
	"log"
	"os"
)

var debug *log.Logger

func init() {
	debug = log.New(io.Discard, "hubctl: ", log.LstdFlags|log.Lshortfile)
}

// SetDebug enables or disables debug logging to stderr.
func SetDebug(on bool) {
	var out io.Writer = io.Discard
	if on {
		out = os.Stderr
	}
	debug = log.New(out, "hubctl: ", log.LstdFlags|log.Lshortfile)
}
