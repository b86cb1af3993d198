package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"gopkg.in/yaml.v3"
)

// MarkerFile is the completion marker inside the state directory
const MarkerFile = "marker.yaml"

// Marker is written only after the installer reported success
type Marker struct {
	RunID         string     `yaml:"run_id"`
	Role          types.Role `yaml:"role"`
	HostIP        string     `yaml:"host_ip"`
	Branch        string     `yaml:"branch,omitempty"`
	FloatingRange string     `yaml:"floating_range,omitempty"`
	CompletedAt   time.Time  `yaml:"completed_at"`
}

// MarkerPath returns the marker location for stateDir
func MarkerPath(stateDir string) string {
	return filepath.Join(stateDir, MarkerFile)
}

// WriteMarker atomically replaces the marker
func WriteMarker(stateDir string, m Marker) error {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode marker: %w", err)
	}

	path := MarkerPath(stateDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write marker: %w", err)
	}
	return nil
}

// ReadMarker returns the marker, or nil when none exists
func ReadMarker(stateDir string) (*Marker, error) {
	data, err := os.ReadFile(MarkerPath(stateDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read marker: %w", err)
	}

	var m Marker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("marker %s is corrupt: %w", MarkerPath(stateDir), err)
	}
	return &m, nil
}

// RemoveMarker deletes the marker; a missing marker is not an error
func RemoveMarker(stateDir string) error {
	if err := os.Remove(MarkerPath(stateDir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove marker: %w", err)
	}
	return nil
}
