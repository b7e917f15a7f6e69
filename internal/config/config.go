package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Routine is a named backup configuration. The core never mutates a
// Routine once a run has started; edits happen through Load/Save between
// runs.
type Routine struct {
	Name           string `json:"name"`
	SourcePath     string `json:"source_path"`
	S3Prefix       string `json:"s3_prefix"`
	Frequency      string `json:"frequency"`
	RetentionCount int    `json:"retention_count"`
	Note           string `json:"note"`
}

type Config struct {
	AWSProfile string    `json:"aws_profile"`
	BucketName string    `json:"bucket_name"`
	Routines   []Routine `json:"routines"`
}

// FormatError reports a config file that exists but does not satisfy the
// schema. It is returned instead of silently defaulting bad fields.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Path, e.Reason)
}

var ErrRoutineNotFound = errors.New("routine not found")

func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".snapkeep")
}

func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load reads and validates the config at path. A missing file is not an
// error: the caller gets an empty config with the default profile, same as
// a first run.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{AWSProfile: "default"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, &FormatError{Path: path, Reason: err.Error()}
	}

	if cfg.AWSProfile == "" {
		cfg.AWSProfile = "default"
	}

	if err := cfg.Validate(); err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config atomically so a crash mid-write never leaves a
// half-written file behind.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Validate checks the shape every consumer of a Config relies on: unique
// non-empty routine names, retention of at least one snapshot, and prefixes
// without leading or trailing slashes.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Routines))
	for i, r := range c.Routines {
		if r.Name == "" {
			return &FormatError{Reason: fmt.Sprintf("routine %d: name must not be empty", i)}
		}
		if _, dup := seen[r.Name]; dup {
			return &FormatError{Reason: fmt.Sprintf("routine %q: duplicate name", r.Name)}
		}
		seen[r.Name] = struct{}{}

		if r.SourcePath == "" {
			return &FormatError{Reason: fmt.Sprintf("routine %q: source_path must not be empty", r.Name)}
		}
		if r.S3Prefix == "" {
			return &FormatError{Reason: fmt.Sprintf("routine %q: s3_prefix must not be empty", r.Name)}
		}
		if strings.HasPrefix(r.S3Prefix, "/") || strings.HasSuffix(r.S3Prefix, "/") {
			return &FormatError{Reason: fmt.Sprintf("routine %q: s3_prefix must not have leading or trailing slash", r.Name)}
		}
		if r.RetentionCount < 1 {
			return &FormatError{Reason: fmt.Sprintf("routine %q: retention_count must be >= 1", r.Name)}
		}
	}
	return nil
}

func (c *Config) FindRoutine(name string) (Routine, error) {
	for _, r := range c.Routines {
		if r.Name == name {
			return r, nil
		}
	}
	return Routine{}, fmt.Errorf("%w: %q", ErrRoutineNotFound, name)
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
