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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"
	"github.com/shadowfs/shadowfsd/internal/daxtable"
	"github.com/shadowfs/shadowfsd/internal/fusebridge"
	"github.com/shadowfs/shadowfsd/internal/icache"
	"github.com/shadowfs/shadowfsd/internal/logger"
	"github.com/shadowfs/shadowfsd/internal/mountopts"
	"github.com/shadowfs/shadowfsd/internal/shadowfs"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var (
	optionsFlag string
	logFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "shadowfsd [flags] mount_point",
	Short: "Mount a shadow tree as a DAX-backed famfs-compatible file system",
	Long: `shadowfsd serves a directory of shadow metadata documents as a
read-mostly file system whose regular-file content lives in a DAX device
rather than in the documents themselves. See -o for the recognized
mount-option vocabulary (source, daxdev, flock, cache, timeout, ...).`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func init() {
	rootCmd.Flags().StringVarP(&optionsFlag, "options", "o", "", "comma-separated mount options (source=PATH is required)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", `log output format: "text" or "json"`)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMount(cmd *cobra.Command, args []string) error {
	mountPoint := args[0]

	opts, err := mountopts.Parse(optionsFlag)
	if err != nil {
		return err
	}

	logger.SetFormat(logFormat)
	logger.SetLevelFromDebugOpt(opts.Debug)

	rootFD, err := unix.Open(opts.Source, unix.O_DIRECTORY|unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("opening shadow tree root %q: %w", opts.Source, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(rootFD, &st); err != nil {
		unix.Close(rootFD)
		return fmt.Errorf("stat shadow tree root %q: %w", opts.Source, err)
	}

	ic := icache.New(st.Ino, uint64(st.Dev), icache.Attr{
		Mode: st.Mode,
		UID:  st.Uid,
		GID:  st.Gid,
		Ino:  st.Ino,
	}, rootFD)

	dax := daxtable.New()
	if opts.HasDaxDev {
		if err := dax.Configure(0, opts.DaxDev); err != nil {
			return fmt.Errorf("configuring dax device: %w", err)
		}
	}

	fs := shadowfs.New(ic, dax, opts, timeutil.RealClock())
	server := fuseutil.NewFileSystemServer(fusebridge.New(fs))

	logger.Infof("mounting shadow tree %q at %q", opts.Source, mountPoint)
	mfs, err := fuse.Mount(mountPoint, server, &fuse.MountConfig{})
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	registerSignalHandler(mountPoint)

	if err := mfs.Join(context.Background()); err != nil {
		return fmt.Errorf("serving file system: %w", err)
	}
	return nil
}

// registerSignalHandler lets the user unmount with Ctrl-C rather than
// requiring a separate umount(8) invocation in another terminal.
func registerSignalHandler(mountPoint string) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)

	go func() {
		<-signalChan
		logger.Infof("received interrupt, attempting to unmount %q", mountPoint)
		if err := fuse.Unmount(mountPoint); err != nil {
			logger.Errorf("failed to unmount in response to interrupt: %v", err)
		}
	}()
}
