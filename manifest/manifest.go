// Package manifest handles actorvm.toml runtime configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the manifest file.
const FileName = "actorvm.toml"

// Defaults applied to settings the manifest leaves out.
const (
	DefaultHeapSize = 256
	DefaultWorkers  = 1
	DefaultIdlePoll = 10 * time.Millisecond
)

// Manifest represents an actorvm.toml configuration.
type Manifest struct {
	Runtime Runtime     `toml:"runtime"`
	Log     Log         `toml:"log"`
	Metrics Metrics     `toml:"metrics"`
	Actors  []ActorSpec `toml:"actors"`

	// Dir is the directory containing the actorvm.toml file (set at load
	// time). Empty for manifests built with Parse.
	Dir string `toml:"-"`
}

// Runtime configures actors and the scheduler.
type Runtime struct {
	HeapSize        int           `toml:"heap-size"`
	StackHint       int           `toml:"stack-hint"`
	Workers         int           `toml:"workers"`
	MaxTicks        uint64        `toml:"max-ticks"`
	StopWhenIdle    bool          `toml:"stop-when-idle"`
	IdlePoll        time.Duration `toml:"idle-poll"`
	HaltOnTypeError bool          `toml:"halt-on-type-error"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Metrics configures the Prometheus endpoint. An empty Listen disables it.
type Metrics struct {
	Listen string `toml:"listen"`
}

// ActorSpec names an image to start as an actor.
type ActorSpec struct {
	Name  string `toml:"name"`
	Image string `toml:"image"`
}

// Parse decodes manifest text and applies defaults.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}

	// Defaults
	if !md.IsDefined("runtime", "heap-size") {
		m.Runtime.HeapSize = DefaultHeapSize
	}
	if m.Runtime.Workers == 0 {
		m.Runtime.Workers = DefaultWorkers
	}
	if m.Runtime.IdlePoll == 0 {
		m.Runtime.IdlePoll = DefaultIdlePoll
	}
	if !md.IsDefined("runtime", "stop-when-idle") {
		m.Runtime.StopWhenIdle = true
	}
	if !md.IsDefined("runtime", "halt-on-type-error") {
		m.Runtime.HaltOnTypeError = true
	}

	return &m, nil
}

// Default returns the manifest used when no actorvm.toml exists.
func Default() *Manifest {
	m, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return m
}

// Load parses an actorvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find an actorvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate reports every setting that cannot be used, joined.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Runtime.HeapSize < 0 {
		errs = append(errs, fmt.Errorf("runtime.heap-size must not be negative, got %d", m.Runtime.HeapSize))
	}
	if m.Runtime.StackHint < 0 {
		errs = append(errs, fmt.Errorf("runtime.stack-hint must not be negative, got %d", m.Runtime.StackHint))
	}
	if m.Runtime.Workers < 1 {
		errs = append(errs, fmt.Errorf("runtime.workers must be at least 1, got %d", m.Runtime.Workers))
	}
	if m.Runtime.IdlePoll < 0 {
		errs = append(errs, fmt.Errorf("runtime.idle-poll must not be negative, got %s", m.Runtime.IdlePoll))
	}

	seen := make(map[string]bool)
	for i, a := range m.Actors {
		if a.Image == "" {
			errs = append(errs, fmt.Errorf("actors[%d]: image is required", i))
		}
		if a.Name == "" {
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Errorf("actors[%d]: duplicate name %q", i, a.Name))
		}
		seen[a.Name] = true
	}
	return errors.Join(errs...)
}

// ImagePath returns the path of an actor's image, resolved against the
// manifest directory.
func (m *Manifest) ImagePath(a ActorSpec) string {
	if filepath.IsAbs(a.Image) || m.Dir == "" {
		return a.Image
	}
	return filepath.Join(m.Dir, a.Image)
}
