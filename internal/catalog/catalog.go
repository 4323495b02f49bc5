// Package catalog loads, validates and imports the question bank.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Entry struct {
	Question string        `yaml:"question"`
	Options  []EntryOption `yaml:"options"`
}

type EntryOption struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

type file struct {
	Questions []Entry `yaml:"questions"`
}

// Load reads a catalog file. Spreadsheets (.xlsx) and YAML are supported.
func Load(path string) ([]Entry, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()
		return ParseExcel(f)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) ([]Entry, error) {
	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return f.Questions, nil
}

// Validate checks every entry and reports all problems at once.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return errors.New("catalog has no questions")
	}
	var errs []error
	for i, e := range entries {
		if strings.TrimSpace(e.Question) == "" {
			errs = append(errs, fmt.Errorf("question %d: text is empty", i+1))
		}
		if len(e.Options) < 2 {
			errs = append(errs, fmt.Errorf("question %d: needs at least 2 options, has %d", i+1, len(e.Options)))
		}
		correct := 0
		for j, o := range e.Options {
			if strings.TrimSpace(o.Text) == "" {
				errs = append(errs, fmt.Errorf("question %d option %d: text is empty", i+1, j+1))
			}
			if o.Correct {
				correct++
			}
		}
		if correct != 1 {
			errs = append(errs, fmt.Errorf("question %d: needs exactly one correct option, has %d", i+1, correct))
		}
	}
	return errors.Join(errs...)
}
