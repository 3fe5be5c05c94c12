// Copyright 2015 Google Inc. All Rights Reserved.
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

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithEmptyPathReturnsAllLayersDisabled(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Traces.Enabled || cfg.Metrics.Enabled || cfg.FaultyIO.Enabled || cfg.ThrottleIO.Enabled {
		t.Fatalf("expected every layer disabled by default, got %+v", cfg)
	}
}

func TestLoadParsesEveryDocumentedKey(t *testing.T) {
	dir, err := ioutil.TempDir("", "config_test")
	if err != nil {
		t.Fatalf("TempDir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.json")
	doc := `{
		"traces": {"enabled": true},
		"metrics": {"enabled": true},
		"faultyIO": {
			"enabled": true,
			"file_fail_rate": 100,
			"directory_fail_rate": 200,
			"delay_time": 2,
			"use_seednum": true,
			"seed": 42,
			"local_log_path": "/tmp/faults.log"
		},
		"throttleIO": {
			"enabled": true,
			"read_capacity": 4096,
			"read_rate": 4096,
			"write_capacity": 2048,
			"write_rate": 2048
		}
	}`
	if err := ioutil.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Traces.Enabled || !cfg.Metrics.Enabled {
		t.Fatalf("expected traces and metrics enabled, got %+v", cfg)
	}
	if cfg.FaultyIO.FileFailRate != 100 || cfg.FaultyIO.DirectoryFailRate != 200 {
		t.Fatalf("unexpected faultyIO fail rates: %+v", cfg.FaultyIO)
	}
	if cfg.FaultyIO.Seed != 42 || !cfg.FaultyIO.UseSeednum {
		t.Fatalf("unexpected faultyIO seed fields: %+v", cfg.FaultyIO)
	}
	if cfg.FaultyIO.LocalLogPath != "/tmp/faults.log" {
		t.Fatalf("unexpected faultyIO log path: %q", cfg.FaultyIO.LocalLogPath)
	}
	if cfg.ThrottleIO.ReadCapacity != 4096 || cfg.ThrottleIO.WriteRate != 2048 {
		t.Fatalf("unexpected throttleIO fields: %+v", cfg.ThrottleIO)
	}
}

func TestLoadFailsOnAMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.json"); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
