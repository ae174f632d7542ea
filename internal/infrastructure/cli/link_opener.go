package cli

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/doeshing/vrelay/internal/ports"
)

// LinkOpener implements ports.LinkOpener. Links are always logged; they are
// handed to the desktop only when launching is enabled.
type LinkOpener struct {
	launch bool
	logger ports.Logger
	run    func(name string, args ...string) error
}

// NewLinkOpener builds the opener.
func NewLinkOpener(launch bool, logger ports.Logger) *LinkOpener {
	return &LinkOpener{launch: launch, logger: logger, run: runDetached}
}

// Enabled reports whether links are launched on this platform.
func (o *LinkOpener) Enabled() bool {
	if !o.launch {
		return false
	}
	switch runtime.GOOS {
	case "darwin", "linux", "windows":
		return true
	default:
		return false
	}
}

// Open logs url and, when enabled, opens it in the default browser.
func (o *LinkOpener) Open(url string) error {
	o.logger.Info("link detected", map[string]interface{}{"url": url})
	if !o.Enabled() {
		return nil
	}
	switch runtime.GOOS {
	case "darwin":
		return o.run("open", url)
	case "windows":
		return o.run("rundll32", "url.dll,FileProtocolHandler", url)
	default: // linux
		if _, err := exec.LookPath("xdg-open"); err == nil {
			return o.run("xdg-open", url)
		}
		return fmt.Errorf("xdg-open not found")
	}
}

func runDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

var _ ports.LinkOpener = (*LinkOpener)(nil)
