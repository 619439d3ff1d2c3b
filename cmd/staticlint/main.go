// Command staticlint runs the project's static checks as one multichecker binary:
// a fixed set of x/tools passes, ineffassign, nilerr, the project analyzers
// (noosexit, gatewayonly) and a configurable subset of staticcheck.
//
// The staticcheck subset is read from config.json next to the binary:
//
//	{"Staticcheck": ["SA1012", "SA4006"]}
//
// Without that file a built-in default subset is used.
package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/staticcheck"

	"github.com/patric-chuzhbe/urlify/cmd/staticlint/gatewayonly"
	"github.com/patric-chuzhbe/urlify/cmd/staticlint/noosexit"
)

const configFileName = "config.json"

var defaultStaticcheck = []string{"SA1012", "SA1019", "SA4006", "SA4009", "SA5001", "SA9003"}

// ConfigData is the layout of config.json.
type ConfigData struct {
	Staticcheck []string
}

func loadConfig() (ConfigData, error) {
	executable, err := os.Executable()
	if err != nil {
		return ConfigData{}, err
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(executable), configFileName))
	if errors.Is(err, os.ErrNotExist) {
		return ConfigData{Staticcheck: defaultStaticcheck}, nil
	}
	if err != nil {
		return ConfigData{}, err
	}

	var cfg ConfigData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ConfigData{}, err
	}

	return cfg, nil
}

func analyzers(cfg ConfigData) []*analysis.Analyzer {
	result := []*analysis.Analyzer{
		copylock.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		printf.Analyzer,
		structtag.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,
		ineffassign.Analyzer,
		nilerr.Analyzer,
		noosexit.Analyzer,
		gatewayonly.Analyzer,
	}

	enabled := make(map[string]bool, len(cfg.Staticcheck))
	for _, name := range cfg.Staticcheck {
		enabled[name] = true
	}
	for _, check := range staticcheck.Analyzers {
		if enabled[check.Analyzer.Name] {
			result = append(result, check.Analyzer)
		}
	}

	return result
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	multichecker.Main(analyzers(cfg)...)
}
