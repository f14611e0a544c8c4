// Package config - Loads the detector configuration from defaults, YAML and environment.
package config

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
)

// EnvPrefix prefixes environment overrides: CFG_MODEL_CONFTHRESHOLD sets
// model.confthreshold.
const EnvPrefix = "CFG_"

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "config/config.yaml"

// AppConfig defines the detector configuration
type AppConfig struct {
	Model   ModelConfig   `koanf:"model"`
	Session SessionConfig `koanf:"session"`
	Log     LogConfig     `koanf:"log"`
}

// ModelConfig defines the decoding, suppression and labelling options. LabelsPath, when
// set, takes precedence over Labels. TranslationFallback replaces names missing from the
// Language table; empty keeps the English name.
type ModelConfig struct {
	InputSize           int                 `koanf:"inputsize"`
	NumClasses          int                 `koanf:"numclasses"`
	ConfThreshold       float32             `koanf:"confthreshold"`
	IoUThreshold        float32             `koanf:"iouthreshold"`
	Layout              string              `koanf:"layout"`
	Order               string              `koanf:"order"`
	XYActivation        string              `koanf:"xyactivation"`
	ClassAware          bool                `koanf:"classaware"`
	MaxDetections       int                 `koanf:"maxdetections"`
	Workers             int                 `koanf:"workers"`
	Labels              string              `koanf:"labels"`
	LabelsPath          string              `koanf:"labelspath"`
	Language            string              `koanf:"language"`
	TranslationFallback string              `koanf:"translationfallback"`
	Strides             []StrideConfig      `koanf:"strides"`
	Normalization       NormalizationConfig `koanf:"normalization"`
}

// StrideConfig defines one output level; anchors are [width, height] pairs
type StrideConfig struct {
	Size    int          `koanf:"size"`
	Anchors [][2]float32 `koanf:"anchors"`
}

// NormalizationConfig defines the pixel transform
type NormalizationConfig struct {
	Kind string     `koanf:"kind"`
	Mean [3]float32 `koanf:"mean"`
	Std  [3]float32 `koanf:"std"`
}

// SessionConfig defines the ONNX Runtime session
type SessionConfig struct {
	ModelPath       string  `koanf:"modelpath"`
	LibraryPath     string  `koanf:"librarypath"`
	InputPrecision  string  `koanf:"inputprecision"`
	OutputPrecision string  `koanf:"outputprecision"`
	InputName       string  `koanf:"inputname"`
	OutputName      string  `koanf:"outputname"`
	OutputShape     []int64 `koanf:"outputshape"`
	Threads         int     `koanf:"threads"`
	Provider        string  `koanf:"provider"`
	DeviceID        int     `koanf:"deviceid"`
}

// LogConfig defines logging
type LogConfig struct {
	Debug bool `koanf:"debug"`
}

// defaults mirrors model.DefaultConfig. Strides are filled in by ToModelConfig when the
// file leaves them out, since koanf merges lists by replacement.
func defaults() map[string]any {
	d := model.DefaultConfig()
	return map[string]any{
		"model.inputsize":          d.InputSize,
		"model.numclasses":         d.NumClasses,
		"model.confthreshold":      d.ConfThreshold,
		"model.iouthreshold":       d.IoUThreshold,
		"model.layout":             string(d.Layout),
		"model.order":              string(d.Order),
		"model.xyactivation":       string(d.XYActivation),
		"model.workers":            d.Workers,
		"model.labels":             string(models.FamilyYOLO),
		"model.normalization.kind": string(d.Normalization.Kind),
		"session.inputprecision":   string(model.PrecisionFP32),
		"session.outputprecision":  string(model.PrecisionFP32),
		"session.inputname":        "images",
		"session.outputname":       "output0",
		"session.outputshape":      []int64{1, 25200, 85},
		"session.threads":          4,
		"session.provider":         string(providers.CPUProviderBackend),
	}
}

// Load reads defaults, then the YAML file at filePath (skipped when empty), then CFG_
// environment overrides, and unmarshals the result.
//
// Arguments:
//   - filePath: The YAML configuration file, or "".
//
// Returns:
//   - *AppConfig: The merged configuration.
//   - error: An error if a source cannot be read or the result does not validate.
func Load(filePath string) (*AppConfig, error) {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), parser); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", filePath)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, ValidateConfig(&cfg)
}

// ValidateConfig checks the parts of the configuration that have no other validator.
func ValidateConfig(cfg *AppConfig) error {
	if _, err := cfg.Model.ToModelConfig(); err != nil {
		return err
	}
	classes, err := cfg.Model.ClassSet()
	if err != nil {
		return err
	}
	if err := classes.Check(cfg.Model.NumClasses); err != nil {
		return err
	}
	if _, err := cfg.Model.Translator(); err != nil {
		return err
	}
	if err := model.Precision(cfg.Session.InputPrecision).Validate(); err != nil {
		return errors.WithMessage(err, "session input")
	}
	if err := model.Precision(cfg.Session.OutputPrecision).Validate(); err != nil {
		return errors.WithMessage(err, "session output")
	}
	if err := providers.ProviderBackend(cfg.Session.Provider).Validate(); err != nil {
		return err
	}
	if cfg.Session.Threads < 0 {
		return errors.Wrapf(model.ErrInvalidConfiguration, "threads must not be negative, got %d", cfg.Session.Threads)
	}
	return nil
}

// ToModelConfig converts the loaded options into a validated model.Config.
//
// Returns:
//   - model.Config: The decoder and suppression configuration.
//   - error: An ErrInvalidConfiguration if the options are rejected.
func (m ModelConfig) ToModelConfig() (model.Config, error) {
	cfg := model.Config{
		InputSize:     m.InputSize,
		NumClasses:    m.NumClasses,
		ConfThreshold: m.ConfThreshold,
		IoUThreshold:  m.IoUThreshold,
		Layout:        model.Layout(m.Layout),
		Order:         model.Order(m.Order),
		XYActivation:  model.Activation(m.XYActivation),
		ClassAware:    m.ClassAware,
		MaxDetections: m.MaxDetections,
		Workers:       m.Workers,
		Normalization: model.Normalization{
			Kind: model.NormalizationKind(m.Normalization.Kind),
			Mean: m.Normalization.Mean,
			Std:  m.Normalization.Std,
		},
	}

	if len(m.Strides) == 0 {
		cfg.Strides = model.YOLOv5Strides()
	}
	for _, s := range m.Strides {
		stride := model.Stride{Size: s.Size, Anchors: make([]model.Anchor, len(s.Anchors))}
		for i, a := range s.Anchors {
			stride.Anchors[i] = model.Anchor{W: a[0], H: a[1]}
		}
		cfg.Strides = append(cfg.Strides, stride)
	}

	return cfg, cfg.Validate()
}

// ClassSet returns the labels read from LabelsPath, or the built-in table named by
// Labels when no path is set.
func (m ModelConfig) ClassSet() (*models.ClassSet, error) {
	if m.LabelsPath != "" {
		return models.LoadClassSet(m.LabelsPath)
	}
	return models.NewClassSetFor(models.Family(m.Labels))
}

// Translator returns the display-name table selected by Language, or nil when no
// localisation is configured.
func (m ModelConfig) Translator() (*models.Translator, error) {
	var opts []models.TranslatorOption
	if m.TranslationFallback != "" {
		opts = append(opts, models.WithFallback(m.TranslationFallback))
	}

	switch m.Language {
	case "", "en":
		return nil, nil
	case "fa":
		return models.Persian(opts...), nil
	default:
		return nil, errors.Wrapf(model.ErrInvalidConfiguration, "unsupported language %q", m.Language)
	}
}
