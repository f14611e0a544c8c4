package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/frankban/quicktest"

	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/model"
)

func writeConfig(c *quicktest.C, body string) string {
	path := filepath.Join(c.TempDir(), "config.yaml")
	c.Assert(os.WriteFile(path, []byte(body), 0o600), quicktest.IsNil)
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c := quicktest.New(t)

	cfg, err := Load("")
	c.Assert(err, quicktest.IsNil)
	c.Assert(cfg.Session.InputPrecision, quicktest.Equals, "FP32")
	c.Assert(cfg.Session.OutputPrecision, quicktest.Equals, "FP32")
	c.Assert(cfg.Session.Provider, quicktest.Equals, "cpu")
	c.Assert(cfg.Session.OutputShape, quicktest.DeepEquals, []int64{1, 25200, 85})
	c.Assert(cfg.Log.Debug, quicktest.IsFalse)

	got, err := cfg.Model.ToModelConfig()
	c.Assert(err, quicktest.IsNil)
	c.Assert(got, quicktest.DeepEquals, model.DefaultConfig())
}

func writeLabels(c *quicktest.C, body string) string {
	path := filepath.Join(c.TempDir(), "labels.json")
	c.Assert(os.WriteFile(path, []byte(body), 0o600), quicktest.IsNil)
	return path
}

func TestLoad_File(t *testing.T) {
	c := quicktest.New(t)
	labels := writeLabels(c, `["helmet", "vest"]`)

	cfg, err := Load(writeConfig(c, `
model:
  numclasses: 2
  labelspath: `+labels+`
  confthreshold: 0.5
  layout: strided
  order: cell-major
  xyactivation: sigmoid
  inputsize: 64
  strides:
    - size: 32
      anchors: [[10, 20], [30, 40]]
  normalization:
    kind: standardize
    mean: [0.485, 0.456, 0.406]
    std: [0.229, 0.224, 0.225]
session:
  inputprecision: FP16
log:
  debug: true
`))
	c.Assert(err, quicktest.IsNil)
	c.Assert(cfg.Session.InputPrecision, quicktest.Equals, "FP16")
	c.Assert(cfg.Session.OutputPrecision, quicktest.Equals, "FP32")
	c.Assert(cfg.Log.Debug, quicktest.IsTrue)

	classes, err := cfg.Model.ClassSet()
	c.Assert(err, quicktest.IsNil)
	c.Assert(classes.Family, quicktest.Equals, models.FamilyCustom)
	c.Assert(classes.Name(1), quicktest.Equals, "vest")

	got, err := cfg.Model.ToModelConfig()
	c.Assert(err, quicktest.IsNil)
	c.Assert(got.InputSize, quicktest.Equals, 64)
	c.Assert(got.NumClasses, quicktest.Equals, 2)
	c.Assert(got.ConfThreshold, quicktest.Equals, float32(0.5))
	c.Assert(got.IoUThreshold, quicktest.Equals, float32(0.45))
	c.Assert(got.Order, quicktest.Equals, model.OrderCellMajor)
	c.Assert(got.XYActivation, quicktest.Equals, model.ActivationSigmoid)
	c.Assert(got.Strides, quicktest.DeepEquals, []model.Stride{
		{Size: 32, Anchors: []model.Anchor{{W: 10, H: 20}, {W: 30, H: 40}}},
	})
	c.Assert(got.Normalization, quicktest.DeepEquals, model.ImageNetNormalization)
}

func TestLoad_EnvOverrides(t *testing.T) {
	c := quicktest.New(t)
	c.Setenv("CFG_MODEL_CONFTHRESHOLD", "0.4")
	c.Setenv("CFG_MODEL_LAYOUT", "dense")
	c.Setenv("CFG_SESSION_OUTPUTSHAPE", "1,8400,85")

	cfg, err := Load(writeConfig(c, "model:\n  confthreshold: 0.3\n"))
	c.Assert(err, quicktest.IsNil)
	c.Assert(cfg.Model.ConfThreshold, quicktest.Equals, float32(0.4))
	c.Assert(cfg.Model.Layout, quicktest.Equals, "dense")
	c.Assert(cfg.Session.OutputShape, quicktest.DeepEquals, []int64{1, 8400, 85})
}

func TestLoad_Invalid(t *testing.T) {
	c := quicktest.New(t)

	testCases := []struct {
		name string
		body string
	}{
		{name: "threshold", body: "model:\n  iouthreshold: 2\n"},
		{name: "layout", body: "model:\n  layout: sideways\n"},
		{name: "labels", body: "model:\n  labels: imagenet\n"},
		{name: "language", body: "model:\n  language: xx\n"},
		{name: "input precision", body: "session:\n  inputprecision: INT8\n"},
		{name: "output precision", body: "session:\n  outputprecision: FP64\n"},
		{name: "class count", body: "model:\n  numclasses: 3\n"},
		{name: "threads", body: "session:\n  threads: -1\n"},
		{name: "provider", body: "session:\n  provider: tpu\n"},
		{name: "anchors", body: "model:\n  strides:\n    - size: 8\n      anchors: [[10, 13]]\n    - size: 16\n      anchors: []\n"},
	}

	for _, tc := range testCases {
		c.Run(tc.name, func(c *quicktest.C) {
			_, err := Load(writeConfig(c, tc.body))
			c.Assert(err, quicktest.ErrorIs, model.ErrInvalidConfiguration)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	c := quicktest.New(t)

	_, err := Load(filepath.Join(c.TempDir(), "missing.yaml"))
	c.Assert(err, quicktest.ErrorMatches, "failed to load config file .*")
}

func TestLoad_RepositoryConfig(t *testing.T) {
	c := quicktest.New(t)

	cfg, err := Load("config.yaml")
	c.Assert(err, quicktest.IsNil)
	c.Assert(cfg.Session.InputPrecision, quicktest.Equals, "FP16")
	c.Assert(cfg.Session.OutputPrecision, quicktest.Equals, "FP32")

	got, err := cfg.Model.ToModelConfig()
	c.Assert(err, quicktest.IsNil)
	c.Assert(got.Strides, quicktest.DeepEquals, model.YOLOv5Strides())
}

func TestTranslator(t *testing.T) {
	c := quicktest.New(t)

	tr, err := ModelConfig{}.Translator()
	c.Assert(err, quicktest.IsNil)
	c.Assert(tr, quicktest.IsNil)

	tr, err = ModelConfig{Language: "fa"}.Translator()
	c.Assert(err, quicktest.IsNil)
	c.Assert(tr.Translate("dog"), quicktest.Equals, "سگ")
	c.Assert(tr.Translate("helmet"), quicktest.Equals, "helmet")

	tr, err = ModelConfig{Language: "fa", TranslationFallback: models.PersianUnknown}.Translator()
	c.Assert(err, quicktest.IsNil)
	c.Assert(tr.Translate("dog"), quicktest.Equals, "سگ")
	c.Assert(tr.Translate("helmet"), quicktest.Equals, models.PersianUnknown)
}

func TestClassSet(t *testing.T) {
	c := quicktest.New(t)

	classes, err := ModelConfig{Labels: "voc"}.ClassSet()
	c.Assert(err, quicktest.IsNil)
	c.Assert(classes.Len(), quicktest.Equals, 20)

	classes, err = ModelConfig{Labels: "voc", LabelsPath: writeLabels(c, "- cat\n- dog\n- bird\n")}.ClassSet()
	c.Assert(err, quicktest.IsNil)
	c.Assert(classes.Len(), quicktest.Equals, 3)
	c.Assert(classes.Name(2), quicktest.Equals, "bird")

	_, err = ModelConfig{LabelsPath: writeLabels(c, "[]")}.ClassSet()
	c.Assert(err, quicktest.ErrorIs, model.ErrInvalidConfiguration)

	_, err = ModelConfig{LabelsPath: writeLabels(c, `{"0": "cat"}`)}.ClassSet()
	c.Assert(err, quicktest.ErrorIs, model.ErrInvalidConfiguration)

	_, err = ModelConfig{LabelsPath: filepath.Join(c.TempDir(), "missing.json")}.ClassSet()
	c.Assert(err, quicktest.ErrorMatches, "failed to read labels .*")
}
