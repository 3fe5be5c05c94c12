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

// Command interposefsmount is the mount CLI: it builds the interception
// layer stack the configuration file selects, on top of a passthrough view
// of a source directory, and mounts it at the given mount point.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jacobsa/daemonize"
	"github.com/spf13/cobra"

	fusepkg "github.com/interposefs/interposefs"
	"github.com/interposefs/interposefs/config"
	"github.com/interposefs/interposefs/faultinjection"
	"github.com/interposefs/interposefs/fuseutil"
	"github.com/interposefs/interposefs/metricslayer"
	"github.com/interposefs/interposefs/passthrough"
	"github.com/interposefs/interposefs/ratelimit"
	"github.com/interposefs/interposefs/telemetry"
	"github.com/interposefs/interposefs/tracinglayer"
)

var opts struct {
	writeback      bool
	noWriteback    bool
	flock          bool
	noFlock        bool
	xattr          bool
	noXattr        bool
	timeout        int
	cache          string
	source         string
	configFile     string
	foreground     bool
	debug          bool
	singleThreaded bool
	cloneFD        bool
	maxThreads     int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interposefsmount <mountpoint>",
		Short: "Mount a passthrough filesystem with optional fault-injection, throttling, metrics, and tracing layers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.BoolVar(&opts.writeback, "writeback", false, "enable the writeback cache capability")
	f.BoolVar(&opts.noWriteback, "no_writeback", false, "disable the writeback cache capability (overrides --writeback)")
	f.BoolVar(&opts.flock, "flock", false, "enable BSD-lock (flock) capability")
	f.BoolVar(&opts.noFlock, "no_flock", false, "disable BSD-lock (flock) capability (overrides --flock)")
	f.BoolVar(&opts.xattr, "xattr", false, "enable extended attribute operations")
	f.BoolVar(&opts.noXattr, "no_xattr", false, "disable extended attribute operations (overrides --xattr)")
	f.IntVar(&opts.timeout, "timeout", 0, "entry/attribute cache timeout in seconds")
	f.StringVar(&opts.cache, "cache", "auto", "cache regime: never, auto, or always")
	f.StringVar(&opts.source, "source", "", "source directory the passthrough layer serves (required)")
	f.StringVar(&opts.configFile, "config-file", "", "path to the JSON configuration file (defaults to $CONFIG)")
	f.BoolVar(&opts.foreground, "foreground", false, "run in the foreground instead of daemonizing")
	f.BoolVar(&opts.debug, "debug", false, "enable verbose per-op debug logging")
	f.BoolVar(&opts.singleThreaded, "single-threaded", false, "accepted for mount-option compatibility; this session always serves one goroutine per request (see DESIGN.md)")
	f.BoolVar(&opts.cloneFD, "clone-fd", false, "accepted for mount-option compatibility; this session does not clone the kernel channel fd")
	f.IntVar(&opts.maxThreads, "max-threads", 0, "accepted for mount-option compatibility; this session does not bound worker concurrency")
	f.MarkHidden("single-threaded")
	f.MarkHidden("clone-fd")
	f.MarkHidden("max-threads")

	return cmd
}

func run(mountPoint string) error {
	if !opts.foreground {
		return runDaemonized(mountPoint)
	}

	mfs, err := mountAt(mountPoint)
	signalErr := daemonize.SignalOutcome(err)
	if signalErr != nil {
		log.Printf("interposefsmount: failed to signal outcome to parent process: %v", signalErr)
	}
	if err != nil {
		return err
	}

	return mfs.Join()
}

// runDaemonized re-execs this binary with --foreground set and waits for it
// to report success or failure, the same two-process shape gcsfuse's own
// mount CLI uses: the foreground child does the actual mounting and talks
// its outcome back to this, the original, process.
func runDaemonized(mountPoint string) error {
	path, err := os.Executable()
	if err != nil {
		return fmt.Errorf("interposefsmount: finding own executable: %w", err)
	}

	args := append([]string{"--foreground"}, os.Args[1:]...)
	env := []string{fmt.Sprintf("PATH=%s", os.Getenv("PATH"))}
	if v, ok := os.LookupEnv("CONFIG"); ok {
		env = append(env, fmt.Sprintf("CONFIG=%s", v))
	}
	if v, ok := os.LookupEnv("OTLP_ENDPOINT"); ok {
		env = append(env, fmt.Sprintf("OTLP_ENDPOINT=%s", v))
	}

	if err := daemonize.Run(path, args, env, os.Stdout); err != nil {
		return fmt.Errorf("interposefsmount: daemonize.Run: %w", err)
	}

	return nil
}

func mountAt(mountPoint string) (*fusepkg.MountedFileSystem, error) {
	if opts.source == "" {
		return nil, fmt.Errorf("interposefsmount: --source is required")
	}

	cacheMode, err := parseCacheMode(opts.cache)
	if err != nil {
		return nil, err
	}

	configPath := opts.configFile
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	fs, err := buildLayerStack(cfg, cacheMode)
	if err != nil {
		return nil, err
	}

	mountCfg := &fusepkg.MountConfig{
		FSName:  "interposefs",
		Subtype: "interposefs",
	}
	if opts.debug {
		mountCfg.DebugLogger = log.New(os.Stderr, "interposefs: ", log.LstdFlags)
	}

	return fusepkg.Mount(mountPoint, fs, mountCfg)
}

func parseCacheMode(s string) (passthrough.CacheMode, error) {
	switch s {
	case "never":
		return passthrough.CacheNever, nil
	case "", "auto":
		return passthrough.CacheAuto, nil
	case "always":
		return passthrough.CacheAlways, nil
	default:
		return 0, fmt.Errorf("interposefsmount: invalid --cache value %q (want never, auto, or always)", s)
	}
}

func resolvedBool(enable, disable bool) bool {
	if disable {
		return false
	}
	return enable
}

// buildLayerStack wires the stack in spec §2's order: passthrough at the
// bottom, then fault injection, then throttling, then metrics, then
// tracing at the top — the order requests arrive from the kernel in.
func buildLayerStack(cfg config.Config, cacheMode passthrough.CacheMode) (fuseutil.FileSystem, error) {
	timeout := time.Duration(opts.timeout) * time.Second

	base, err := passthrough.New(passthrough.Config{
		SourceDir: opts.source,
		Writeback: resolvedBool(opts.writeback, opts.noWriteback),
		Flock:     resolvedBool(opts.flock, opts.noFlock),
		Xattr:     resolvedBool(opts.xattr, opts.noXattr),
		Cache:     cacheMode,
		EntryTTL:  timeout,
		AttrTTL:   timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("interposefsmount: opening source directory: %w", err)
	}

	var fs fuseutil.FileSystem = base
	var faultFS *faultinjection.FS

	if cfg.FaultyIO.Enabled {
		faultFS, err = faultinjection.New(fs, faultinjection.Config{
			FileFailRate: cfg.FaultyIO.FileFailRate,
			DirFailRate:  cfg.FaultyIO.DirectoryFailRate,
			Delay:        time.Duration(cfg.FaultyIO.DelayTime) * time.Second,
			UseSeed:      cfg.FaultyIO.UseSeednum,
			Seed:         cfg.FaultyIO.Seed,
			LogPath:      cfg.FaultyIO.LocalLogPath,
		})
		if err != nil {
			return nil, fmt.Errorf("interposefsmount: building fault-injection layer: %w", err)
		}
		fs = faultFS
	}

	if cfg.ThrottleIO.Enabled {
		throttleFS, err := ratelimit.NewThrottleLayer(fs, ratelimit.Config{
			ReadCapacity:  cfg.ThrottleIO.ReadCapacity,
			ReadRate:      cfg.ThrottleIO.ReadRate,
			WriteCapacity: cfg.ThrottleIO.WriteCapacity,
			WriteRate:     cfg.ThrottleIO.WriteRate,
		})
		if err != nil {
			return nil, fmt.Errorf("interposefsmount: building throttling layer: %w", err)
		}
		fs = throttleFS
	}

	if cfg.Metrics.Enabled {
		meter, _ := telemetry.NewOTelMeter("interposefs")
		metricsFS, err := metricslayer.New(fs, meter)
		if err != nil {
			return nil, fmt.Errorf("interposefsmount: building metrics layer: %w", err)
		}
		fs = metricsFS
	}

	if cfg.Traces.Enabled {
		tracer, err := telemetry.NewOTelTracer("interposefs", os.Getenv("OTLP_ENDPOINT"), io.Discard)
		if err != nil {
			return nil, fmt.Errorf("interposefsmount: building tracer: %w", err)
		}
		tracingFS := tracinglayer.New(fs, tracer)
		if faultFS != nil {
			faultFS.WithEventSink(tracingFS)
		}
		fs = tracingFS
	}

	return fs, nil
}
