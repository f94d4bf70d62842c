// Package deps reports availability of the external tools the daemon
// shells out to, so status output can explain a broken setup before a
// playback request fails.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Status reports the availability of one external tool.
type Status struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// CheckFFmpeg resolves the configured ffmpeg binary. An absolute or
// relative path is stat'd directly; a bare name goes through PATH lookup,
// matching how exec.Command will resolve it at session start.
func CheckFFmpeg(binary string) Status {
	status := Status{Name: "ffmpeg", Command: strings.TrimSpace(binary)}
	if status.Command == "" {
		status.Command = "ffmpeg"
	}

	if strings.ContainsRune(status.Command, filepath.Separator) {
		info, err := os.Stat(status.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
			return status
		}
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			status.Detail = fmt.Sprintf("%q is not executable", status.Command)
			return status
		}
		status.Available = true
		return status
	}

	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found in PATH", status.Command)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}
