package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/AaronFeledy/devx-sub000/internal/core/domain"
	"github.com/AaronFeledy/devx-sub000/internal/core/plugin"
	"github.com/AaronFeledy/devx-sub000/internal/globalstack"
	"github.com/AaronFeledy/devx-sub000/internal/shell/catalog"
)

var (
	statusGood    = color.New(color.FgGreen).SprintFunc()
	statusBad     = color.New(color.FgRed).SprintFunc()
	statusPending = color.New(color.FgYellow).SprintFunc()
	statusMuted   = color.New(color.Faint).SprintFunc()
	titleStyle    = color.New(color.Bold).SprintFunc()
)

// colorRuntime colors a runtime status by health.
func colorRuntime(s domain.RuntimeStatus) string {
	text := string(s)
	if color.NoColor {
		return text
	}
	switch {
	case s == domain.RuntimeRunning:
		return statusGood(text)
	case s == domain.RuntimeError:
		return statusBad(text)
	case s.IsTransitional():
		return statusPending(text)
	case s == domain.RuntimeStopped, s == domain.RuntimeNotCreated:
		return statusMuted(text)
	}
	return text
}

// colorBuild colors a build status by outcome.
func colorBuild(s domain.BuildStatus) string {
	text := string(s)
	if color.NoColor {
		return text
	}
	switch s {
	case domain.BuildBuilt:
		return statusGood(text)
	case domain.BuildError:
		return statusBad(text)
	case domain.BuildBuilding:
		return statusPending(text)
	}
	return text
}

func colorOutcome(ok bool, text string) string {
	if color.NoColor {
		return text
	}
	if ok {
		return statusGood(text)
	}
	return statusBad(text)
}

func bold(text string) string {
	if color.NoColor {
		return text
	}
	return titleStyle(text)
}

// printDone reports a completed operation.
func printDone(w io.Writer, verb, name string) {
	fmt.Fprintf(w, "%s %s %s\n", colorOutcome(true, "✓"), verb, bold(name))
}

// printStackStatus renders one stack's status with its services.
func printStackStatus(w io.Writer, st domain.StackStatus) {
	fmt.Fprintf(w, "%s: %s\n", bold(st.Name), colorRuntime(st.Status))
	if st.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", colorOutcome(false, "error:"), st.Error)
	}
	if len(st.Services) == 0 {
		return
	}

	names := make([]string, 0, len(st.Services))
	for name := range st.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  SERVICE\tSTATUS\tPORTS")
	for _, name := range names {
		svc := st.Services[name]
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", name, colorRuntime(svc.Status), formatPorts(svc.Ports))
	}
	tw.Flush()
}

func formatPorts(ports []domain.Port) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		if p.HostPort == 0 {
			parts = append(parts, fmt.Sprintf("%d/%s", p.ContainerPort, proto))
			continue
		}
		host := p.HostIP
		if host == "" {
			host = "0.0.0.0"
		}
		parts = append(parts, fmt.Sprintf("%s:%d->%d/%s", host, p.HostPort, p.ContainerPort, proto))
	}
	return strings.Join(parts, ", ")
}

// printStateTable lists every persisted stack state.
func printStateTable(w io.Writer, all domain.DevxState) {
	if len(all) == 0 {
		fmt.Fprintln(w, "No stacks found.")
		return
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBUILD\tRUNTIME\tLAST BUILT\tCONFIG")
	for _, name := range names {
		st := all[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			name, colorBuild(st.BuildStatus), colorRuntime(st.RuntimeStatus), formatTime(st.LastBuiltAt), st.ConfigPath)
	}
	tw.Flush()

	for _, name := range names {
		if msg := all[name].LastError; msg != nil && *msg != "" {
			fmt.Fprintf(w, "%s %s: %s\n", colorOutcome(false, "!"), name, *msg)
		}
	}
}

// printPlugins lists registered plugins and their capabilities.
func printPlugins(w io.Writer, plugins []plugin.Plugin, defaults plugin.Defaults) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tCAPABILITIES\tDEFAULT")
	for _, p := range plugins {
		caps := plugin.Capabilities(p)
		names := make([]string, 0, len(caps))
		for _, c := range caps {
			names = append(names, string(c))
		}
		var def []string
		if p.Name() == defaults.Builder {
			def = append(def, string(plugin.CapabilityBuilder))
		}
		if p.Name() == defaults.Engine {
			def = append(def, string(plugin.CapabilityEngine))
		}
		defText := "-"
		if len(def) > 0 {
			defText = strings.Join(def, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name(), p.Version(), strings.Join(names, ","), defText)
	}
	tw.Flush()
}

// printHistory renders recorded operations, newest first.
func printHistory(w io.Writer, ops []catalog.Operation) {
	if len(ops) == 0 {
		fmt.Fprintln(w, "No operations recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tOPERATION\tOUTCOME\tDURATION\tERROR")
	for _, op := range ops {
		errText := op.Error
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			op.StartedAt.Local().Format(time.DateTime),
			op.Operation,
			colorOutcome(op.Outcome == catalog.OutcomeSucceeded, string(op.Outcome)),
			op.FinishedAt.Sub(op.StartedAt).Round(time.Millisecond),
			errText)
	}
	tw.Flush()
}

// printResults reports a global batch operation. It returns the number of
// failed stacks.
func printResults(w io.Writer, verb string, results []globalstack.Result) int {
	if len(results) == 0 {
		fmt.Fprintln(w, "No global stacks to "+verb+".")
		return 0
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", colorOutcome(false, "✗"), bold(r.Name), r.Err)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", colorOutcome(true, "✓"), bold(r.Name))
	}
	return failed
}

// printGlobalStatus renders the global stack status map sorted by name.
func printGlobalStatus(w io.Writer, dir string, status map[string]string) {
	if len(status) == 0 {
		fmt.Fprintf(w, "No global stacks found in %s.\n", dir)
		return
	}
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", bold(name), colorRuntime(domain.RuntimeStatus(status[name])))
	}
}

func printCatalog(w io.Writer, entries []catalog.StackEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No stacks recorded in the catalog.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCONFIG\tUPDATED")
	for _, e := range entries {
		updated := e.UpdatedAt
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.ConfigPath, formatTime(&updated))
	}
	tw.Flush()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
