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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig carries option defaults from an optional YAML file. Values set
// on the command line always win.
type fileConfig struct {
	Location string   `yaml:"location"`
	Vendor   string   `yaml:"vendor"`
	Ports    string   `yaml:"ports"`
	Delay    *float64 `yaml:"delay"`
	Repeat   *int     `yaml:"repeat"`
	Wait     *int     `yaml:"wait"`
	Exact    *bool    `yaml:"exact"`
	Force    *bool    `yaml:"force"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".hubctl.yaml")
}

// applyConfig fills option values from the config file for every flag the
// user did not set explicitly. A missing default config file is fine; a
// missing file named with --config is an error.
func applyConfig(flags *pflag.FlagSet, o *options) error {
	path, explicit := o.config, o.config != ""
	if !explicit {
		if path = defaultConfigPath(); path == "" {
			return nil
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var c fileConfig
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	if !flags.Changed("location") && c.Location != "" {
		o.location = c.Location
	}
	if !flags.Changed("vendor") && c.Vendor != "" {
		o.vendor = c.Vendor
	}
	if !flags.Changed("ports") && c.Ports != "" {
		o.ports = c.Ports
	}
	if !flags.Changed("delay") && c.Delay != nil {
		o.delay = *c.Delay
	}
	if !flags.Changed("repeat") && c.Repeat != nil {
		o.repeat = *c.Repeat
	}
	if !flags.Changed("wait") && c.Wait != nil {
		o.wait = *c.Wait
	}
	if !flags.Changed("exact") && c.Exact != nil {
		o.exact = *c.Exact
	}
	if !flags.Changed("force") && c.Force != nil {
		o.force = *c.Force
	}
	return nil
}
