package prompt

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load returns the prompt pack with overrides from a YAML file applied on top
// of the defaults. An empty path or a missing file keeps the defaults; only
// non-empty fields in the file replace built-ins, so a partial override file
// is fine.
func Load(path string, logger *slog.Logger) (Pack, error) {
	pack := Defaults()
	if path == "" {
		return pack, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("prompt file does not exist, using defaults", "path", path)
			return pack, nil
		}
		return pack, fmt.Errorf("read prompt file: %w", err)
	}

	var overrides Pack
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return pack, fmt.Errorf("parse prompt file %s: %w", path, err)
	}

	applied := 0
	for _, o := range []struct {
		value  string
		target *string
	}{
		{overrides.Classifier, &pack.Classifier},
		{overrides.Question, &pack.Question},
		{overrides.Summary, &pack.Summary},
		{overrides.Keypoints, &pack.Keypoints},
	} {
		if o.value != "" {
			*o.target = o.value
			applied++
		}
	}
	if applied > 0 {
		logger.Info("loaded prompt overrides", "path", path, "applied", applied)
	}
	return pack, nil
}
