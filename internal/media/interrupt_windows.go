//go:build windows

package media

import "os/exec"

func interrupt(c *exec.Cmd) error {
	if c.Process == nil {
		return nil
	}
	return c.Process.Kill()
}
