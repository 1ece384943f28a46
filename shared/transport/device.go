package transport

import (
	"context"
	"fmt"
	"os/exec"
)

// Device describes a removable/optical storage target: the archive
// engine writes volumes to a staging directory and then invokes an
// external command (cdrecord/growisofs-style) to commit the volume to
// media. The command bodies themselves are intentionally not
// implemented — optical media tool invocation is named but out of
// core scope — only the descriptor and invocation plumbing live here,
// reusing the same os/exec shell-command pattern as the pre/post
// backup hook runner.
type Device struct {
	Name           string
	WriteCommand   string // shell command, %s substituted with the staging path
	RequestVolumeCommand string
	UnloadCommand  string
}

// Write runs the device's WriteCommand against a staged volume path.
// Returns an error if no WriteCommand is configured.
func (d Device) Write(ctx context.Context, stagingPath string) error {
	if d.WriteCommand == "" {
		return fmt.Errorf("transport: device %s: no write command configured", d.Name)
	}
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", fmt.Sprintf(d.WriteCommand, stagingPath))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("transport: device %s: write command failed: %w: %s", d.Name, err, out)
	}
	return nil
}
