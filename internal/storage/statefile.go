package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rxtech-lab/argo-shortbot/internal/types"
	"github.com/rxtech-lab/argo-shortbot/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PersistedState is the part of the state store kept in the state file between runs.
type PersistedState struct {
	Portfolio     types.Portfolio            `yaml:"portfolio"`
	Stats         types.GlobalStats          `yaml:"global_stats"`
	Peaks         map[string]types.PeakEntry `yaml:"peak_tracker"`
	UptimeSeconds float64                    `yaml:"total_uptime_seconds"`
	// PausedUntil is zero when the loss breaker is not active.
	PausedUntil time.Time `yaml:"paused_until"`
	SavedAt     time.Time `yaml:"saved_at"`
	// BotVersion is the build that wrote the file.
	BotVersion string `yaml:"bot_version,omitempty"`
}

// Uptime returns the stored uptime as a duration.
func (p PersistedState) Uptime() time.Duration {
	return time.Duration(p.UptimeSeconds * float64(time.Second))
}

// StateFile reads and writes PersistedState as YAML.
type StateFile struct {
	path string
}

// NewStateFile returns a state file at path. Nothing is read until Load.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Path returns the file location.
func (f *StateFile) Path() string {
	return f.path
}

// Load reads the file. It returns false when the file does not exist yet.
func (f *StateFile) Load() (PersistedState, bool, error) {
	var state PersistedState

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return state, false, nil
	}

	if err != nil {
		return state, false, errors.Wrapf(errors.ErrCodeStateFileFailed, err, "failed to read state file %s", f.path)
	}

	if err := yaml.Unmarshal(data, &state); err != nil {
		return PersistedState{}, false, errors.Wrapf(errors.ErrCodeStateFileFailed, err, "failed to parse state file %s", f.path) //nolint:exhaustruct // failure
	}

	return state, true, nil
}

// Save writes the file through a temporary file so a crash never leaves it half written.
func (f *StateFile) Save(state PersistedState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateFileFailed, "failed to marshal state", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStateFileFailed, "failed to create state directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateFileFailed, "failed to create temporary state file", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return errors.Wrap(errors.ErrCodeStateFileFailed, "failed to write state file", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return errors.Wrap(errors.ErrCodeStateFileFailed, "failed to close state file", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())

		return errors.Wrap(errors.ErrCodeStateFileFailed, "failed to replace state file", err)
	}

	return nil
}
