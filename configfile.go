package opsuite

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-suite/flags"
)

//go:embed config.schema.json
var configSchemaData []byte

var (
	configSchema *jsonschema.Schema
	compileOnce  sync.Once
	compileErr   error
)

func compileSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(configSchemaData))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal config schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add config schema resource: %w", err)
			return
		}
		configSchema, compileErr = compiler.Compile("config.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compile config schema: %w", compileErr)
		}
	})
	return configSchema, compileErr
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// FileConfig is the content of a config file. Unset fields are nil.
type FileConfig struct {
	Interface          *string         `json:"interface"`
	InterfaceParameter json.RawMessage `json:"interfaceParameter"`
	Files              []string        `json:"files"`
	Timeout            *Duration       `json:"timeout"`
	ListingTimeout     *Duration       `json:"listingTimeout"`
	Slow               *Duration       `json:"slow"`
	GraceTime          *Duration       `json:"graceTime"`
	Attempts           *int            `json:"attempts"`
	Parallel           *int            `json:"parallel"`
	RunUnstable        *bool           `json:"runUnstable"`
	KillSubProcesses   *bool           `json:"killSubProcesses"`
	Reporters          []string        `json:"reporters"`
	NoColor            *bool           `json:"noColor"`
	LogDir             *string         `json:"logDir"`
	RunInterval        *Duration       `json:"runInterval"`
	ProgressInterval   *Duration       `json:"progressInterval"`
}

// LoadConfigFile reads a YAML (.yaml, .yml) or TOML (.toml) config file and
// validates it against the config schema.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		_, err = toml.Decode(string(data), &raw)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q, expected .yaml, .yml or .toml", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if raw == nil {
		raw = make(map[string]any)
	}

	// Round-trip through JSON so that the schema sees plain JSON values.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config file %s: %w", path, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(normalized))
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config file %s: %w", path, err)
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := json.Unmarshal(normalized, &fc); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return &fc, nil
}

// apply copies the values of the file into cfg, except for the flags for
// which isSet returns true.
func (fc *FileConfig) apply(cfg *Config, isSet func(name string) bool) {
	setString := func(flag string, dst *string, v *string) {
		if v != nil && !isSet(flag) {
			*dst = *v
		}
	}
	setBool := func(flag string, dst *bool, v *bool) {
		if v != nil && !isSet(flag) {
			*dst = *v
		}
	}
	setInt := func(flag string, dst *int, v *int) {
		if v != nil && !isSet(flag) {
			*dst = *v
		}
	}
	setDuration := func(flag string, dst *time.Duration, v *Duration) {
		if v != nil && !isSet(flag) {
			*dst = time.Duration(*v)
		}
	}

	setString(flags.Interface.Name, &cfg.Interface, fc.Interface)
	setString(flags.LogDir.Name, &cfg.LogDir, fc.LogDir)
	if fc.InterfaceParameter != nil && !isSet(flags.InterfaceParameter.Name) {
		cfg.InterfaceParameter = fc.InterfaceParameter
	}
	if fc.Files != nil && !isSet(flags.Files.Name) {
		cfg.Files = fc.Files
	}
	if fc.Reporters != nil && !isSet(flags.Reporters.Name) {
		cfg.Reporters = fc.Reporters
	}
	setDuration(flags.Timeout.Name, &cfg.Options.Timeout, fc.Timeout)
	setDuration(flags.ListingTimeout.Name, &cfg.Options.ListingTimeout, fc.ListingTimeout)
	setDuration(flags.Slow.Name, &cfg.Options.SlowThreshold, fc.Slow)
	setDuration(flags.GraceTime.Name, &cfg.Options.GraceTime, fc.GraceTime)
	setDuration(flags.RunInterval.Name, &cfg.RunInterval, fc.RunInterval)
	setDuration(flags.ProgressInterval.Name, &cfg.ProgressInterval, fc.ProgressInterval)
	setInt(flags.Attempts.Name, &cfg.Options.Attempts, fc.Attempts)
	setInt(flags.Parallel.Name, &cfg.Parallel, fc.Parallel)
	setBool(flags.RunUnstable.Name, &cfg.RunUnstable, fc.RunUnstable)
	setBool(flags.KillSubProcesses.Name, &cfg.KillSubProcesses, fc.KillSubProcesses)
	setBool(flags.NoColor.Name, &cfg.NoColor, fc.NoColor)
}
