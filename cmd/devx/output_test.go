package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/globalstack"
	"github.com/AaronFeledy/devx-sub000/internal/shell/catalog"
)

func withNoColor(t *testing.T, v bool) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = v
	t.Cleanup(func() { color.NoColor = prev })
}

func TestColorRuntime(t *testing.T) {
	t.Run("plain when color disabled", func(t *testing.T) {
		withNoColor(t, true)
		assert.Equal(t, "running", colorRuntime(domain.RuntimeRunning))
		assert.Equal(t, "error", colorRuntime(domain.RuntimeError))
	})

	t.Run("colored when enabled", func(t *testing.T) {
		withNoColor(t, false)
		for _, s := range []domain.RuntimeStatus{domain.RuntimeRunning, domain.RuntimeError, domain.RuntimeStarting, domain.RuntimeStopped} {
			out := colorRuntime(s)
			assert.Contains(t, out, "\x1b[", s)
			assert.Contains(t, out, string(s))
		}
		assert.Equal(t, "unknown", colorRuntime(domain.RuntimeUnknown))
	})
}

func TestColorBuild(t *testing.T) {
	withNoColor(t, false)
	assert.Contains(t, colorBuild(domain.BuildBuilt), "\x1b[")
	assert.Contains(t, colorBuild(domain.BuildError), "\x1b[")
	assert.Equal(t, "not_built", colorBuild(domain.BuildNotBuilt))
}

func TestFormatPorts(t *testing.T) {
	tests := []struct {
		name  string
		ports []domain.Port
		want  string
	}{
		{"none", nil, "-"},
		{"published", []domain.Port{{ContainerPort: 80, HostPort: 8080, Protocol: "tcp"}}, "0.0.0.0:8080->80/tcp"},
		{"host ip", []domain.Port{{ContainerPort: 53, HostPort: 5353, Protocol: "udp", HostIP: "127.0.0.1"}}, "127.0.0.1:5353->53/udp"},
		{"exposed only", []domain.Port{{ContainerPort: 9000}}, "9000/tcp"},
		{"multiple", []domain.Port{{ContainerPort: 80, HostPort: 80}, {ContainerPort: 443, HostPort: 443}}, "0.0.0.0:80->80/tcp, 0.0.0.0:443->443/tcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatPorts(tt.ports))
		})
	}
}

func TestPrintStackStatus(t *testing.T) {
	withNoColor(t, true)

	var buf bytes.Buffer
	printStackStatus(&buf, domain.StackStatus{
		Name:   "shop",
		Status: domain.RuntimeError,
		Error:  "one or more services are in error state",
		Services: map[string]domain.ServiceStatus{
			"web": {Status: domain.RuntimeRunning},
			"db":  {Status: domain.RuntimeError},
		},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "shop: error", lines[0])
	assert.Equal(t, "  error: one or more services are in error state", lines[1])
	assert.Contains(t, lines[2], "SERVICE")
	// Services are sorted by name.
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[3]), "db"))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[4]), "web"))
}

func TestPrintStateTable(t *testing.T) {
	withNoColor(t, true)

	var empty bytes.Buffer
	printStateTable(&empty, domain.DevxState{})
	assert.Equal(t, "No stacks found.\n", empty.String())

	msg := "compose exited 1"
	var buf bytes.Buffer
	printStateTable(&buf, domain.DevxState{
		"b": {Name: "b", ConfigPath: "/p/b/.stack.yml", BuildStatus: domain.BuildError, RuntimeStatus: domain.RuntimeUnknown, LastError: &msg},
		"a": {Name: "a", ConfigPath: "/p/a/.stack.yml", BuildStatus: domain.BuildBuilt, RuntimeStatus: domain.RuntimeRunning},
	})

	out := buf.String()
	assert.Less(t, strings.Index(out, "/p/a"), strings.Index(out, "/p/b"))
	assert.Contains(t, out, "! b: compose exited 1")
}

func TestPrintHistory(t *testing.T) {
	withNoColor(t, true)

	var empty bytes.Buffer
	printHistory(&empty, nil)
	assert.Equal(t, "No operations recorded.\n", empty.String())

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printHistory(&buf, []catalog.Operation{
		{Stack: "demo", Operation: "start", Outcome: catalog.OutcomeFailed, Error: "boom", StartedAt: started, FinishedAt: started.Add(1500 * time.Millisecond)},
		{Stack: "demo", Operation: "build", Outcome: catalog.OutcomeSucceeded, StartedAt: started, FinishedAt: started.Add(2 * time.Second)},
	})

	out := buf.String()
	assert.Regexp(t, `start\s+failed\s+1\.5s\s+boom`, out)
	assert.Regexp(t, `build\s+succeeded\s+2s\s+-`, out)
}

func TestPrintResults(t *testing.T) {
	withNoColor(t, true)

	var buf bytes.Buffer
	failed := printResults(&buf, "start", []globalstack.Result{
		{Name: "mail"},
		{Name: "proxy", Err: errors.New("port in use")},
	})

	assert.Equal(t, 1, failed)
	assert.Equal(t, "✓ mail\n✗ proxy: port in use\n", buf.String())

	buf.Reset()
	assert.Equal(t, 0, printResults(&buf, "stop", nil))
	assert.Equal(t, "No global stacks to stop.\n", buf.String())
}

func TestPrintGlobalStatus(t *testing.T) {
	withNoColor(t, true)

	var buf bytes.Buffer
	printGlobalStatus(&buf, "/home/dev/.devx/global", map[string]string{"proxy": "running", "mail": "error: boom"})
	assert.Equal(t, "mail: error: boom\nproxy: running\n", buf.String())

	buf.Reset()
	printGlobalStatus(&buf, "/home/dev/.devx/global", nil)
	assert.Equal(t, "No global stacks found in /home/dev/.devx/global.\n", buf.String())
}
