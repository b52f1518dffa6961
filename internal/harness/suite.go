package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioFailure is one scenario that failed to load, run, or pass.
type ScenarioFailure struct {
	Name  string `json:"name,omitempty"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SuiteResult summarises a batch of scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// FindScenarios returns the scenario files at path: the file itself, or
// every *.yaml and *.yml file under a directory in lexical order.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml":
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk scenarios: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunFiles loads and runs every scenario file. A file that fails to load or
// execute counts as a failure; it does not stop the batch.
func RunFiles(paths []string) *SuiteResult {
	res := &SuiteResult{Failures: []ScenarioFailure{}}
	for _, path := range paths {
		res.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			res.fail(ScenarioFailure{Path: path, Error: err.Error()})
			continue
		}
		result, err := Run(scenario)
		if err != nil {
			res.fail(ScenarioFailure{Name: scenario.Name, Path: path, Error: err.Error()})
			continue
		}
		if !result.Pass {
			res.fail(ScenarioFailure{Name: scenario.Name, Path: path, Error: strings.Join(result.Errors, "\n")})
			continue
		}
		res.Passed++
	}
	return res
}

func (r *SuiteResult) fail(f ScenarioFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
}
