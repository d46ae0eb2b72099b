package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"delta-gateway/internal/dat"
	"delta-gateway/internal/delta"
	"delta-gateway/internal/logging"
)

func main() {
	root := flag.String("root", "dat-data/v0.0.1/reader_tests/generated", "directory holding the generated reader cases")
	maxReader := flag.Int("max-reader-version", 1, "highest reader protocol version to accept")
	features := flag.String("reader-features", "", "comma separated reader features to accept")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	abs, err := filepath.Abs(*root)
	if err != nil {
		logger.Fatal("Failed to resolve case directory", zap.Error(err))
	}

	var featureList []string
	if *features != "" {
		featureList = strings.Split(*features, ",")
	}
	caps, err := delta.NewCapabilities(*maxReader, featureList)
	if err != nil {
		logger.Fatal("Invalid reader capabilities", zap.Error(err))
	}

	runner := dat.NewRunner(afero.NewBasePathFs(afero.NewOsFs(), abs), caps)
	cases, err := runner.Discover("")
	if err != nil {
		logger.Fatal("Failed to discover cases", zap.Error(err))
	}
	if len(cases) == 0 {
		logger.Fatal("No cases found", zap.String("root", abs))
	}

	failed := 0
	for _, res := range runner.Run(context.Background(), cases) {
		if res.Passed() {
			fmt.Printf("PASS %s\n", res.Case)
			continue
		}
		failed++
		fmt.Printf("FAIL %s: %v\n", res.Case, res.Err)
	}
	fmt.Printf("%d/%d cases passed\n", len(cases)-failed, len(cases))
	if failed > 0 {
		os.Exit(1)
	}
}
