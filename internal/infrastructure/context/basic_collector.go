package contextcollector

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/ports"
)

// BasicCollector implements ContextCollector with filesystem, platform and
// tool detection.
type BasicCollector struct {
	toolsToCheck []string
	probeTimeout time.Duration
}

func NewBasicCollector() *BasicCollector {
	return &BasicCollector{
		toolsToCheck: []string{"git", "curl", "wget", "python3", "go", "node", "docker", "make", "open", "xdg-open", "ffmpeg"},
		probeTimeout: domain.DefaultToolProbeTimeout,
	}
}

// Collect gathers context data.
func (c *BasicCollector) Collect(ctx context.Context, cfg domain.Config) (domain.ContextSnapshot, error) {
	wd, _ := os.Getwd()

	files := []domain.FileInfo{}
	if cfg.Context.IncludeFiles {
		files = listFiles(wd, cfg.GetMaxContextFiles())
	}

	return domain.ContextSnapshot{
		WorkingDir:     wd,
		Shell:          detectShell(cfg.GetExecutionShell()),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		Platform:       c.detectPlatform(ctx),
		User:           os.Getenv("USER"),
		Files:          files,
		AvailableTools: c.detectTools(),
	}, nil
}

func (c *BasicCollector) detectTools() []string {
	var available []string
	for _, tool := range c.toolsToCheck {
		if _, err := exec.LookPath(tool); err == nil {
			available = append(available, tool)
		}
	}
	sort.Strings(available)
	return available
}

// detectPlatform returns e.g. "ubuntu 24.04" or "darwin 15.1".
func (c *BasicCollector) detectPlatform(ctx context.Context) string {
	cctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	info, err := host.InfoWithContext(cctx)
	if err != nil || info == nil {
		return runtime.GOOS
	}
	if platform := strings.TrimSpace(info.Platform + " " + info.PlatformVersion); platform != "" {
		return platform
	}
	return runtime.GOOS
}

func listFiles(dir string, limit int) []domain.FileInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []domain.FileInfo
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if len(files) >= limit {
			break
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, domain.FileInfo{
			Path: entry.Name(),
			Size: info.Size(),
			Type: toFileType(info),
		})
	}
	return files
}

func toFileType(info os.FileInfo) domain.FileType {
	switch {
	case info.Mode().IsDir():
		return domain.FileTypeDir
	case info.Mode()&os.ModeSymlink != 0:
		return domain.FileTypeSymlink
	case info.Mode().IsRegular():
		return domain.FileTypeFile
	default:
		return domain.FileTypeUnknown
	}
}

func detectShell(configured string) string {
	if configured != "" {
		return filepath.Base(configured)
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return filepath.Base(shell)
	}
	if comspec := os.Getenv("COMSPEC"); comspec != "" {
		return strings.ToLower(filepath.Base(comspec))
	}
	return "unknown"
}

var _ ports.ContextCollector = (*BasicCollector)(nil)
