// Package config loads playtest configuration from YAML or CUE files and
// validates it against the embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/playtest/internal/bot"
	"github.com/roach88/playtest/internal/coverage"
	"github.com/roach88/playtest/internal/fuzz"
	"github.com/roach88/playtest/internal/matrix"
	"github.com/roach88/playtest/internal/oracle"
)

//go:embed schema.cue
var schemaCUE string

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Matrix is the matrix section.
type Matrix struct {
	Worlds           []string        `json:"worlds" yaml:"worlds"`
	Adventures       []string        `json:"adventures" yaml:"adventures"`
	Locales          []string        `json:"locales" yaml:"locales"`
	Experiments      []string        `json:"experiments,omitempty" yaml:"experiments,omitempty"`
	Variations       []string        `json:"variations,omitempty" yaml:"variations,omitempty"`
	Toggles          []matrix.Toggle `json:"toggles,omitempty" yaml:"toggles,omitempty"`
	SeedsPerScenario int             `json:"seeds_per_scenario" yaml:"seeds_per_scenario"`
	MaxTurns         int             `json:"max_turns" yaml:"max_turns"`
	Timeout          Duration        `json:"timeout" yaml:"timeout"`
	MaxTokens        int             `json:"max_tokens" yaml:"max_tokens"`
}

// Run is the run section.
type Run struct {
	Modes              []string `json:"modes,omitempty" yaml:"modes,omitempty"`
	Shards             int      `json:"shards" yaml:"shards"`
	MaxConcurrent      int      `json:"max_concurrent" yaml:"max_concurrent"`
	CheckpointInterval int      `json:"checkpoint_interval" yaml:"checkpoint_interval"`
	Artifacts          bool     `json:"artifacts" yaml:"artifacts"`
	ArtifactDir        string   `json:"artifact_dir" yaml:"artifact_dir"`
	Resume             bool     `json:"resume" yaml:"resume"`
	Strict             bool     `json:"strict" yaml:"strict"`
	CallTimeout        Duration `json:"call_timeout" yaml:"call_timeout"`
}

// Engine configures the built-in synthetic content engine.
type Engine struct {
	GraphSize    int `json:"graph_size" yaml:"graph_size"`
	MinLatencyMS int `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMS int `json:"max_latency_ms" yaml:"max_latency_ms"`
}

// Log is the log section.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Config is a complete configuration file.
type Config struct {
	CoreVersion string             `json:"core_version" yaml:"core_version"`
	Database    string             `json:"database" yaml:"database"`
	Matrix      Matrix             `json:"matrix" yaml:"matrix"`
	Run         Run                `json:"run" yaml:"run"`
	Oracle      oracle.Thresholds  `json:"oracle" yaml:"oracle"`
	Coverage    coverage.Estimates `json:"coverage" yaml:"coverage"`
	Gates       fuzz.Gates         `json:"gates" yaml:"gates"`
	Engine      Engine             `json:"engine" yaml:"engine"`
	Log         Log                `json:"log" yaml:"log"`
}

// Default returns a configuration with every optional section at its
// default. The matrix section has no default.
func Default() Config {
	opts := fuzz.DefaultOptions()
	return Config{
		CoreVersion: opts.CoreVersion,
		Database:    "playtest.db",
		Run: Run{
			Shards:             opts.Shards,
			MaxConcurrent:      opts.MaxConcurrent,
			CheckpointInterval: opts.CheckpointInterval,
			ArtifactDir:        opts.ArtifactDir,
		},
		Oracle:   oracle.DefaultThresholds(),
		Coverage: coverage.DefaultEstimates(),
		Gates:    fuzz.DefaultGates(),
		Engine:   Engine{GraphSize: 12, MinLatencyMS: 20, MaxLatencyMS: 400},
		Log:      Log{Level: "INFO", Format: "text"},
	}
}

// Load reads path as YAML (.yaml, .yml) or CUE (.cue), validates it against
// #Config and returns it on top of Default().
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{Code: ErrCodeRead, Path: path, Message: err.Error(), Err: err}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUE(path, data)
	case ".yaml", ".yml", "":
		return LoadYAML(path, data)
	default:
		return Config{}, &LoadError{Code: ErrCodeRead, Path: path, Message: fmt.Sprintf("unsupported config extension %q", filepath.Ext(path))}
	}
}

// LoadYAML decodes YAML strictly, then validates the same document
// against the schema.
func LoadYAML(path string, data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, &LoadError{Code: ErrCodeParse, Path: path, Message: "empty config file", Err: err}
		}
		return Config{}, &LoadError{Code: ErrCodeParse, Path: path, Message: err.Error(), Err: err}
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, &LoadError{Code: ErrCodeParse, Path: path, Message: err.Error(), Err: err}
	}
	ctx := cuecontext.New()
	if err := validate(ctx, path, ctx.Encode(doc)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadCUE compiles a CUE config, validates it against the schema and
// decodes the concrete result.
func LoadCUE(path string, data []byte) (Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return Config{}, cueLoadError(ErrCodeParse, path, err)
	}
	if err := validate(ctx, path, v); err != nil {
		return Config{}, err
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return Config{}, cueLoadError(ErrCodeSchema, path, err)
	}
	cfg := Default()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, &LoadError{Code: ErrCodeSchema, Path: path, Message: err.Error(), Err: err}
	}
	return cfg, nil
}

// validate unifies v with #Config and requires a concrete result.
func validate(ctx *cue.Context, path string, v cue.Value) error {
	if err := v.Err(); err != nil {
		return cueLoadError(ErrCodeParse, path, err)
	}
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueLoadError(ErrCodeSchema, path, err)
	}
	return nil
}

func cueLoadError(code, path string, err error) *LoadError {
	le := &LoadError{Code: code, Path: path, Message: cueerrors.Details(err, nil), Err: err}
	for _, e := range cueerrors.Errors(err) {
		for _, pos := range e.InputPositions() {
			if pos.Filename() == path {
				le.Pos = pos
				break
			}
		}
		if le.Pos.IsValid() {
			break
		}
	}
	le.Message = strings.TrimSpace(le.Message)
	return le
}

// MatrixConfig converts the matrix section. Toggles without options
// enumerate false then true.
func (c Config) MatrixConfig() matrix.Config {
	toggles := make([]matrix.Toggle, 0, len(c.Matrix.Toggles))
	for _, tg := range c.Matrix.Toggles {
		if len(tg.Options) == 0 {
			tg.Options = []bool{false, true}
		}
		toggles = append(toggles, tg)
	}
	return matrix.Config{
		Worlds:           c.Matrix.Worlds,
		Adventures:       c.Matrix.Adventures,
		Locales:          c.Matrix.Locales,
		Experiments:      c.Matrix.Experiments,
		Variations:       c.Matrix.Variations,
		Toggles:          toggles,
		SeedsPerScenario: c.Matrix.SeedsPerScenario,
		MaxTurns:         c.Matrix.MaxTurns,
		Timeout:          time.Duration(c.Matrix.Timeout),
		MaxTokens:        c.Matrix.MaxTokens,
	}
}

// Options converts the run, oracle and coverage sections to runner options.
func (c Config) Options() (fuzz.Options, error) {
	modes, err := bot.ParseModes(c.Run.Modes)
	if err != nil {
		return fuzz.Options{}, err
	}
	opts := fuzz.DefaultOptions()
	opts.Modes = modes
	opts.Shards = c.Run.Shards
	opts.MaxConcurrent = c.Run.MaxConcurrent
	opts.CheckpointInterval = c.Run.CheckpointInterval
	opts.Artifacts = c.Run.Artifacts
	opts.ArtifactDir = c.Run.ArtifactDir
	opts.Resume = c.Run.Resume
	opts.Strict = c.Run.Strict
	opts.CallTimeout = time.Duration(c.Run.CallTimeout)
	opts.CoreVersion = c.CoreVersion
	opts.Oracle = c.Oracle
	opts.Coverage = c.Coverage
	return opts, nil
}
