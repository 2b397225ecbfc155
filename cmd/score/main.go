package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"riskcast/internal/bundle"
	"riskcast/internal/pipeline"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// selectionFile is the on-disk shape of a feature selection, YAML or JSON.
type selectionFile struct {
	Categories map[string]string  `yaml:"categories" json:"categories"`
	Numerics   map[string]float64 `yaml:"numerics" json:"numerics"`
}

func main() {
	var (
		bundlePath = flag.String("bundle", "bundle.json", "Path or URL of the bundle document")
		inputPath  = flag.String("input", "", "Selection file (YAML or JSON)")
		asJSON     = flag.Bool("json", false, "Print the full result as JSON")
		logLevel   = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
		timeout    = flag.Duration("timeout", 5*time.Second, "Bundle fetch timeout")
	)
	flag.Parse()

	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: score -bundle <bundle.json> -input <selection.yaml>")
		os.Exit(2)
	}

	b, err := bundle.Resolve(*bundlePath, *timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("bundle load failed")
	}

	sel, err := readSelection(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("selection load failed")
	}

	session := pipeline.NewSession(b, nil)
	res, err := session.Predict(sel)
	if err != nil {
		log.Fatal().Err(err).Msg("prediction failed")
	}

	if *asJSON {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("probability: %.4f (%.1f%%)\n", res.Probability, res.Percent())
	fmt.Printf("score:       %.4f\n", res.Score)
	fmt.Printf("decision:    %s (threshold %.2f)\n", res.Decision, res.ThresholdUsed)
	if res.SkippedLookups > 0 {
		fmt.Printf("warning:     %d selection value(s) had no matching feature\n", res.SkippedLookups)
	}
}

func readSelection(path string) (pipeline.Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Selection{}, fmt.Errorf("read selection %s: %w", path, err)
	}

	var sf selectionFile
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sf)
	default:
		err = json.Unmarshal(data, &sf)
	}
	if err != nil {
		return pipeline.Selection{}, fmt.Errorf("parse selection %s: %w", path, err)
	}

	return pipeline.Selection{Categories: sf.Categories, Numerics: sf.Numerics}, nil
}
