package docversion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	vderrors "github.com/stubborncoder/vdocs/internal/errors"
)

// Evaluation is a structured quality report for one (version, language)
// pair. The report shape is owned by the evaluation stage; the store treats
// it as opaque.
type Evaluation map[string]any

// EvaluationKey identifies a stored evaluation.
type EvaluationKey struct {
	Version  string `json:"version"`
	Language string `json:"language"`
}

func (s *Store) evaluationsDir() string {
	return filepath.Join(s.docDir(), "evaluations")
}

func (s *Store) evaluationPath(version, language string) string {
	return filepath.Join(s.evaluationsDir(), "v"+version+"_"+language+".json")
}

// resolveVersion maps an empty version to the current one.
func (s *Store) resolveVersion(version string) (string, error) {
	if version != "" {
		return version, nil
	}
	current, _, err := s.currentVersion()
	if err != nil {
		return "", err
	}
	return current.String(), nil
}

// SaveEvaluation stores a quality report for a language. An empty version
// targets the current version.
func (s *Store) SaveEvaluation(report Evaluation, language, version string) error {
	version, err := s.resolveVersion(version)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.evaluationsDir(), 0o750); err != nil {
		return vderrors.IOError("create evaluations directory", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return vderrors.InternalError("marshal evaluation").WithContext("cause", err.Error())
	}
	if err := os.WriteFile(s.evaluationPath(version, language), data, 0o600); err != nil {
		return vderrors.IOError("write evaluation", err)
	}
	return nil
}

// GetEvaluation loads the report for a (version, language) pair, or nil when
// absent or malformed. An empty version targets the current version.
func (s *Store) GetEvaluation(language, version string) (Evaluation, error) {
	version, err := s.resolveVersion(version)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.evaluationPath(version, language)) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vderrors.IOError("read evaluation", err)
	}

	var report Evaluation
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, nil
	}
	return report, nil
}

// ListEvaluations returns the keys of all stored evaluations, sorted.
func (s *Store) ListEvaluations() ([]EvaluationKey, error) {
	entries, err := os.ReadDir(s.evaluationsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vderrors.IOError("read evaluations directory", err)
	}

	var keys []EvaluationKey
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".json")
		idx := strings.LastIndexByte(stem, '_')
		if idx <= 0 {
			continue
		}
		keys = append(keys, EvaluationKey{Version: stem[:idx], Language: stem[idx+1:]})
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Version != keys[j].Version {
			return keys[i].Version < keys[j].Version
		}
		return keys[i].Language < keys[j].Language
	})
	return keys, nil
}

// DeleteEvaluation removes a stored report. It returns false when no report
// existed. An empty version targets the current version.
func (s *Store) DeleteEvaluation(language, version string) (bool, error) {
	version, err := s.resolveVersion(version)
	if err != nil {
		return false, err
	}

	err = os.Remove(s.evaluationPath(version, language))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, vderrors.IOError("delete evaluation", err)
	}
	return true, nil
}
