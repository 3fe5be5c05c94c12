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

package fuse

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// findFusermount locates the unprivileged mount helper. Linux distributions
// ship either name depending on libfuse major version.
func findFusermount() (string, error) {
	for _, name := range []string{"fusermount3", "fusermount"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New("fuse: neither fusermount3 nor fusermount found in PATH")
}

// mount opens a /dev/fuse channel for dir via fusermount's unprivileged
// mount protocol: fusermount is exec'd with one end of a unix domain
// socketpair passed as fd 3 (via _FUSE_COMMFD), and it sends the opened
// /dev/fuse descriptor back over that socket as ancillary (SCM_RIGHTS)
// data once the kernel mount(2) call succeeds.
func mount(dir string, config *MountConfig) (*os.File, error) {
	fusermount, err := findFusermount()
	if err != nil {
		return nil, err
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair: %w", err)
	}
	local := os.NewFile(uintptr(fds[0]), "fuse-commfd-local")
	remote := os.NewFile(uintptr(fds[1]), "fuse-commfd-remote")
	defer remote.Close()
	defer local.Close()

	cmd := exec.Command(fusermount, "-o", config.toOptionsString(), "--", dir)
	cmd.Env = append(os.Environ(), "_FUSE_COMMFD=3")
	cmd.ExtraFiles = []*os.File{remote}
	cmd.Stderr = os.Stderr
	cmd.Stdout = os.Stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s: %w", fusermount, err)
	}

	fd, err := receiveDevFD(local)
	if err != nil {
		return nil, fmt.Errorf("receiving /dev/fuse descriptor: %w", err)
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("clearing O_NONBLOCK: %w", err)
	}

	return os.NewFile(uintptr(fd), "/dev/fuse"), nil
}

func receiveDevFD(local *os.File) (int, error) {
	buf := make([]byte, 4)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := unix.Recvmsg(int(local.Fd()), buf, oob, 0)
	if err != nil {
		return 0, fmt.Errorf("recvmsg: %w", err)
	}
	if n == 0 {
		return 0, errors.New("fusermount closed the socket without sending a descriptor")
	}

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return 0, fmt.Errorf("parsing control message: %w", err)
	}
	if len(scms) != 1 {
		return 0, fmt.Errorf("expected exactly one control message, got %d", len(scms))
	}

	rights, err := unix.ParseUnixRights(&scms[0])
	if err != nil {
		return 0, fmt.Errorf("parsing unix rights: %w", err)
	}
	if len(rights) != 1 {
		return 0, fmt.Errorf("expected exactly one descriptor, got %d", len(rights))
	}

	return rights[0], nil
}
