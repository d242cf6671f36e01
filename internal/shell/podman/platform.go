package podman

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// PlatformInfo describes the host as it affects how podman is reached.
type PlatformInfo struct {
	OS   string `json:"os"`
	Arch string `json:"arch"`
	// Rootless is true when running as a non-root user.
	Rootless bool `json:"rootless"`
	// RequiresVM is true where podman runs inside a podman machine VM.
	RequiresVM bool `json:"requires_vm"`
	// WSL is true on Linux under the Windows Subsystem for Linux.
	WSL bool `json:"wsl"`
	UID int  `json:"uid"`
}

// DetectPlatform inspects the running host.
func DetectPlatform() PlatformInfo {
	procVersion, _ := os.ReadFile("/proc/version")
	return detectPlatform(runtime.GOOS, runtime.GOARCH, os.Geteuid(), string(procVersion))
}

func detectPlatform(goos, goarch string, uid int, procVersion string) PlatformInfo {
	info := PlatformInfo{
		OS:   goos,
		Arch: goarch,
		UID:  uid,
	}
	switch goos {
	case "darwin", "windows":
		info.RequiresVM = true
		info.Rootless = true
	case "linux":
		info.Rootless = uid != 0
		info.WSL = strings.Contains(strings.ToLower(procVersion), "microsoft")
	default:
		info.Rootless = uid > 0
	}
	return info
}

// SocketCandidates lists podman API endpoints for the platform, most
// specific first. home and runtimeDir may be empty.
func (p PlatformInfo) SocketCandidates(home, runtimeDir string) []string {
	switch p.OS {
	case "windows":
		return []string{"npipe:////./pipe/podman-machine-default"}
	case "darwin":
		var out []string
		if home != "" {
			out = append(out,
				"unix://"+filepath.Join(home, ".local", "share", "containers", "podman", "machine", "podman.sock"),
				"unix://"+filepath.Join(home, ".local", "share", "containers", "podman", "machine", "podman-machine-default", "podman.sock"),
			)
		}
		return append(out, "unix:///var/run/docker.sock")
	}

	if !p.Rootless {
		return []string{"unix:///run/podman/podman.sock"}
	}
	if runtimeDir == "" {
		runtimeDir = fmt.Sprintf("/run/user/%d", p.UID)
	}
	return []string{
		"unix://" + filepath.Join(runtimeDir, "podman", "podman.sock"),
		"unix:///run/podman/podman.sock",
	}
}

// ResolveSocket picks the API endpoint: configured if set, else
// CONTAINER_HOST, else the first candidate socket that exists on disk, else
// the first candidate.
func ResolveSocket(configured string, p PlatformInfo) string {
	if configured != "" {
		return configured
	}
	if host := os.Getenv("CONTAINER_HOST"); host != "" {
		return host
	}
	home, _ := os.UserHomeDir()
	candidates := p.SocketCandidates(home, os.Getenv("XDG_RUNTIME_DIR"))
	for _, c := range candidates {
		path, ok := strings.CutPrefix(c, "unix://")
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return c
		}
	}
	return candidates[0]
}
