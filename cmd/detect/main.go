// Command detect runs the YOLO detector on one image, or on every image of a directory,
// and prints the detections as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"image"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/util"
)

// frameResult is the JSON output for one image of a directory.
type frameResult struct {
	Path       string                  `json:"path"`
	Detections []postprocess.Detection `json:"detections"`
}

func main() {
	var (
		configPath = flag.String("file", config.DefaultPath, "configuration file path")
		envPath    = flag.String("env", "", "optional .env file with CFG_ overrides")
		imagePath  = flag.String("image", "", "image to run detection on")
		dirPath    = flag.String("dir", "", "directory of JPEG/PNG/WebP images to run detection on")
		batch      = flag.Int("batch", 4, "images processed concurrently with -dir")
	)
	flag.Parse()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			panic(err)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Log.Debug)
	defer func() { _ = log.Sync() }()

	if (*imagePath == "") == (*dirPath == "") {
		log.Fatal("give exactly one of -image or -dir")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, err := newEngine(cfg, log)
	if err != nil {
		log.Fatal("failed to build engine", zap.String("kind", model.Kind(err)), zap.Error(err))
	}
	defer engine.Close()

	if *dirPath != "" {
		err = runDir(ctx, engine, *dirPath, *batch, log)
	} else {
		err = runImage(ctx, engine, *imagePath, log)
	}
	if err != nil {
		log.Fatal("detection failed", zap.String("kind", model.Kind(err)), zap.Error(err))
	}
}

func newEngine(cfg *config.AppConfig, log *zap.Logger) (inference.Engine, error) {
	modelCfg, err := cfg.Model.ToModelConfig()
	if err != nil {
		return nil, err
	}
	classes, err := cfg.Model.ClassSet()
	if err != nil {
		return nil, err
	}
	translator, err := cfg.Model.Translator()
	if err != nil {
		return nil, err
	}

	return inference.NewEngineBuilder().
		WithLogger(log).
		WithTranslator(translator).
		WithSession(sessionConfig(cfg, modelCfg.InputSize)).
		WithDetector(modelCfg, classes).
		Build()
}

func runImage(ctx context.Context, engine inference.Engine, path string, log *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := util.ImageFile{Path: path, Data: data}.Decode()
	if err != nil {
		return err
	}

	detections, err := engine.Predict(ctx, img)
	if err != nil {
		return err
	}
	log.Info("detected objects", zap.String("image", path), zap.Int("count", len(detections)))
	return printJSON(detections)
}

func runDir(ctx context.Context, engine inference.Engine, dir string, batch int, log *zap.Logger) error {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}

	imgs := make([]image.Image, len(files))
	for i, f := range files {
		if imgs[i], err = f.Decode(); err != nil {
			return err
		}
	}

	results, err := engine.PredictBatch(ctx, imgs, batch)
	if err != nil {
		return err
	}

	out := make([]frameResult, len(files))
	for i, f := range files {
		out[i] = frameResult{Path: f.Path, Detections: results[i]}
	}
	log.Info("detected objects", zap.String("dir", dir), zap.Int("images", len(files)))
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sessionConfig(cfg *config.AppConfig, inputSize int) inference.SessionConfig {
	return inference.SessionConfig{
		ModelPath:       cfg.Session.ModelPath,
		LibraryPath:     cfg.Session.LibraryPath,
		InputPrecision:  model.Precision(cfg.Session.InputPrecision),
		OutputPrecision: model.Precision(cfg.Session.OutputPrecision),
		InputName:       cfg.Session.InputName,
		OutputName:      cfg.Session.OutputName,
		InputSize:       inputSize,
		OutputShape:     cfg.Session.OutputShape,
		Provider: providers.Options{
			Backend:        providers.ProviderBackend(cfg.Session.Provider),
			DeviceID:       cfg.Session.DeviceID,
			IntraOpThreads: cfg.Session.Threads,
		},
	}
}
