// Package verify runs the log-to-verdict pipeline: locate the freshest log,
// detect its format, deserialize it into a trace State, normalize the State,
// and assert that an instance with the expected name exists.
package verify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/suranap/legion/internal/locator"
	"github.com/suranap/legion/pkg/prof"
)

// ErrNameNotFound is returned when parsing succeeded but no instance carries
// the expected name.
var ErrNameNotFound = errors.New("instance name not found in profiler output")

// Options configures one verification run.
type Options struct {
	ExpectedName  string
	Verbose       bool
	VisibleNodes  prof.NodeSet
	FilterInput   func(prof.Record) bool
	CallThreshold time.Duration

	// Diag receives failure diagnostics (the list of names actually found).
	// Defaults to stderr when nil; tests inject a buffer.
	Diag io.Writer
}

// Run executes the full pipeline against the newest log matching pattern.
// Returns nil exactly when an instance named Options.ExpectedName exists in
// the reconstructed state. Every stage is sequential; the State is owned by
// this call and discarded when it returns.
func Run(pattern string, opts Options) error {
	path, err := locator.FindLatest(pattern)
	if err != nil {
		return err
	}
	slog.Info("verifying instance name", "log", path, "expected", opts.ExpectedName)

	ft, version, err := prof.DetectFileType(path)
	if err != nil {
		return fmt.Errorf("format detection: %w", err)
	}
	slog.Debug("detected log format", "type", ft.String(), "version", version.String())

	state := prof.NewState(opts.CallThreshold)
	d, err := prof.NewDeserializer(ft, state)
	if err != nil {
		return err
	}
	parseOpts := prof.ParseOptions{
		Verbose:      opts.Verbose,
		VisibleNodes: opts.VisibleNodes,
		FilterInput:  opts.FilterInput,
	}
	if err := d.Parse(path, parseOpts); err != nil {
		return err
	}

	// Order-sensitive normalization; see the prof package docs.
	state.AttachFillsToChannels()
	state.AttachCopiesToChannels()
	state.SortTimeRanges()
	if n := state.CheckOperationParents(); n > 0 {
		slog.Warn("operation hierarchy inconsistencies", "count", n)
	}
	state.LinkInstances()

	diag := opts.Diag
	if diag == nil {
		diag = os.Stderr
	}
	if !InstanceName(state, opts.ExpectedName, diag) {
		return fmt.Errorf("%w: %q", ErrNameNotFound, opts.ExpectedName)
	}
	return nil
}

// InstanceName reports whether any instance in the state carries the
// expected name. The scan is read-only and short-circuits on the first
// match. On failure it writes a diagnostic to diag: either the sorted list
// of names actually present, or a note that nothing is named at all.
func InstanceName(s *prof.State, expected string, diag io.Writer) bool {
	for _, inst := range s.Instances {
		if inst.Name != "" && inst.Name == expected {
			return true
		}
	}

	if diag == nil {
		return false
	}
	var names []string
	for _, inst := range s.Instances {
		if inst.Name != "" {
			names = append(names, inst.Name)
		}
	}
	if len(names) > 0 {
		sort.Strings(names)
		fmt.Fprintf(diag, "Found instance names: %s\n", strings.Join(names, ", "))
	} else {
		fmt.Fprintln(diag, "No named instances found in the log.")
	}
	return false
}
