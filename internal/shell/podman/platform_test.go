package podman

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name        string
		goos        string
		uid         int
		procVersion string
		want        PlatformInfo
	}{
		{
			name: "linux root",
			goos: "linux", uid: 0, procVersion: "Linux version 6.1.0",
			want: PlatformInfo{OS: "linux", Arch: "amd64", UID: 0},
		},
		{
			name: "linux rootless",
			goos: "linux", uid: 1000, procVersion: "Linux version 6.1.0",
			want: PlatformInfo{OS: "linux", Arch: "amd64", UID: 1000, Rootless: true},
		},
		{
			name: "wsl",
			goos: "linux", uid: 1000, procVersion: "Linux version 5.15.90.1-microsoft-standard-WSL2",
			want: PlatformInfo{OS: "linux", Arch: "amd64", UID: 1000, Rootless: true, WSL: true},
		},
		{
			name: "darwin",
			goos: "darwin", uid: 501,
			want: PlatformInfo{OS: "darwin", Arch: "amd64", UID: 501, Rootless: true, RequiresVM: true},
		},
		{
			name: "windows",
			goos: "windows", uid: -1,
			want: PlatformInfo{OS: "windows", Arch: "amd64", UID: -1, Rootless: true, RequiresVM: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectPlatform(tt.goos, "amd64", tt.uid, tt.procVersion))
		})
	}
}

func TestSocketCandidates(t *testing.T) {
	rootless := PlatformInfo{OS: "linux", Rootless: true, UID: 1000}
	assert.Equal(t, "unix:///run/user/1000/podman/podman.sock", rootless.SocketCandidates("", "")[0])
	assert.Equal(t, "unix:///xdg/podman/podman.sock", rootless.SocketCandidates("", "/xdg")[0])

	root := PlatformInfo{OS: "linux"}
	assert.Equal(t, []string{"unix:///run/podman/podman.sock"}, root.SocketCandidates("", ""))

	win := PlatformInfo{OS: "windows"}
	assert.Equal(t, "npipe:////./pipe/podman-machine-default", win.SocketCandidates("", "")[0])

	mac := PlatformInfo{OS: "darwin"}
	assert.Contains(t, mac.SocketCandidates("/Users/dev", "")[0], "/Users/dev/.local/share/containers/podman/machine")
}

func TestResolveSocket(t *testing.T) {
	t.Setenv("CONTAINER_HOST", "")
	assert.Equal(t, "unix:///custom.sock", ResolveSocket("unix:///custom.sock", PlatformInfo{OS: "linux"}))

	t.Setenv("CONTAINER_HOST", "tcp://10.0.0.1:8080")
	assert.Equal(t, "tcp://10.0.0.1:8080", ResolveSocket("", PlatformInfo{OS: "linux"}))

	t.Setenv("CONTAINER_HOST", "")
	runtimeDir := t.TempDir()
	sock := filepath.Join(runtimeDir, "podman", "podman.sock")
	assert.NoError(t, os.MkdirAll(filepath.Dir(sock), 0o755))
	assert.NoError(t, os.WriteFile(sock, nil, 0o600))
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	assert.Equal(t, "unix://"+sock, ResolveSocket("", PlatformInfo{OS: "linux", Rootless: true, UID: 1000}))
}
