// Package settings holds the live-reloadable alerting configuration:
// thresholds, exclusion lists, and the customer -> target -> email mapping.
// The file is re-read on every Load so edits take effect without a restart.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/proactivedb/fleetmon/internal/monitoring/model"
)

type Thresholds struct {
	CPU    float64 `json:"cpu" yaml:"cpu"`
	Memory float64 `json:"memory" yaml:"memory"`
}

type AlertExclusions struct {
	ExcludedDisks     []string `json:"excludedDisks" yaml:"excludedDisks"`
	ExcludedOraErrors []string `json:"excludedOraErrors" yaml:"excludedOraErrors"`
}

type CustomerDatabase struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Customer struct {
	ID        string             `json:"id" yaml:"id"`
	Name      string             `json:"name" yaml:"name"`
	Emails    []string           `json:"emails" yaml:"emails"`
	Databases []CustomerDatabase `json:"databases" yaml:"databases"`
}

type EmailSettings struct {
	AdminEmails []string   `json:"adminEmails" yaml:"adminEmails"`
	Customers   []Customer `json:"customers" yaml:"customers"`
}

type Settings struct {
	TablespaceThreshold float64         `json:"tablespaceThreshold" yaml:"tablespaceThreshold"`
	DiskThreshold       float64         `json:"diskThreshold" yaml:"diskThreshold"`
	Thresholds          Thresholds      `json:"thresholds" yaml:"thresholds"`
	AlertExclusions     AlertExclusions `json:"alertExclusions" yaml:"alertExclusions"`
	EmailSettings       EmailSettings   `json:"emailSettings" yaml:"emailSettings"`
}

// Defaults mirrors the settings the service seeds on first run.
func Defaults() Settings {
	return Settings{
		TablespaceThreshold: 90,
		DiskThreshold:       90,
		Thresholds:          Thresholds{CPU: 90, Memory: 90},
		AlertExclusions: AlertExclusions{
			ExcludedDisks:     []string{"/boot", "/var/lib/docker/overlay2"},
			ExcludedOraErrors: []string{"TNS-"},
		},
		EmailSettings: EmailSettings{
			AdminEmails: []string{"admin@example.com"},
		},
	}
}

// ConfiguredTargets flattens the customer mapping into the list of targets
// the status monitor sweeps.
func (s *Settings) ConfiguredTargets() []model.TargetRef {
	var out []model.TargetRef
	for _, c := range s.EmailSettings.Customers {
		for _, db := range c.Databases {
			if db.ID == "" {
				continue
			}
			name := db.Name
			if name == "" {
				name = db.ID
			}
			out = append(out, model.TargetRef{ID: db.ID, DBName: name})
		}
	}
	return out
}

// CustomerFor returns the first configured customer owning targetID. When
// configuration maps one target to several customers, first match wins.
func (s *Settings) CustomerFor(targetID string) (Customer, bool) {
	for _, c := range s.EmailSettings.Customers {
		for _, db := range c.Databases {
			if db.ID == targetID {
				return c, true
			}
		}
	}
	return Customer{}, false
}

// Store is a file-backed settings source. Format is YAML or JSON depending on
// the file extension.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store { return &Store{path: path} }

// Load reads the settings file, creating it with defaults when missing.
// A corrupt file degrades to defaults rather than failing the evaluation
// cycle that asked for it.
func (st *Store) Load() (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		def := Defaults()
		if werr := st.write(def); werr != nil {
			return def, werr
		}
		return def, nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("read settings %s: %w", st.path, err)
	}

	var s Settings
	if st.isYAML() {
		err = yaml.Unmarshal(data, &s)
	} else {
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return Defaults(), fmt.Errorf("parse settings %s: %w", st.path, err)
	}
	fillDefaults(&s)
	return s, nil
}

// Save persists the settings atomically (write-then-rename).
func (st *Store) Save(s Settings) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.write(s)
}

func (st *Store) write(s Settings) error {
	var data []byte
	var err error
	if st.isYAML() {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings %s: %w", st.path, err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("replace settings %s: %w", st.path, err)
	}
	return nil
}

func (st *Store) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(st.path))
	return ext == ".yaml" || ext == ".yml"
}

func fillDefaults(s *Settings) {
	if s.TablespaceThreshold == 0 {
		s.TablespaceThreshold = 90
	}
	if s.DiskThreshold == 0 {
		s.DiskThreshold = 90
	}
	if s.Thresholds.CPU == 0 {
		s.Thresholds.CPU = 90
	}
	if s.Thresholds.Memory == 0 {
		s.Thresholds.Memory = 90
	}
}
