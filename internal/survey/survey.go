// Package survey holds the static survey definition: answer keys for
// multi-select knowledge questions and the grouped sub-question patterns
// used when assembling participant prompts.
package survey

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDefinition []byte

// AnswerKey is the exhaustive set of correct options for one question and
// the options that invalidate an otherwise correct selection.
type AnswerKey struct {
	Name     string   `yaml:"name" json:"name"`
	Question string   `yaml:"question" json:"question"`
	Correct  []string `yaml:"correct" json:"correct"`
	Invalid  []string `yaml:"invalid,omitempty" json:"invalid,omitempty"`
}

// CorrectSet returns the correct options as a set.
func (k AnswerKey) CorrectSet() map[string]struct{} {
	return toSet(k.Correct)
}

// InvalidSet returns the invalidating options as a set.
func (k AnswerKey) InvalidSet() map[string]struct{} {
	return toSet(k.Invalid)
}

// GroupPattern detects a family of sub-questions sharing a numeric prefix
// and a common stem, e.g. "13. How comfortable ... : With officials".
type GroupPattern struct {
	Prefix   string `yaml:"prefix" json:"prefix"`
	Contains string `yaml:"contains" json:"contains"`
	Header   string `yaml:"header" json:"header"`
}

// Matches reports whether question belongs to the group.
func (p GroupPattern) Matches(question string) bool {
	return p.Prefix != "" &&
		strings.HasPrefix(question, p.Prefix) &&
		strings.Contains(question, p.Contains)
}

// Label extracts the sub-question label: the text after the last prefix
// occurrence, trimmed, without a trailing colon.
func (p GroupPattern) Label(question string) string {
	label := question
	if i := strings.LastIndex(question, p.Prefix); i >= 0 {
		label = question[i+len(p.Prefix):]
	}
	return strings.TrimRight(strings.TrimSpace(label), ":")
}

// Definition is the complete survey configuration.
type Definition struct {
	AnswerKeys []AnswerKey    `yaml:"answer_keys" json:"answer_keys"`
	Grouped    []GroupPattern `yaml:"grouped_questions" json:"grouped_questions"`
}

// Key returns the answer key configured for question.
func (d *Definition) Key(question string) (AnswerKey, bool) {
	for _, k := range d.AnswerKeys {
		if k.Question == question {
			return k, true
		}
	}
	return AnswerKey{}, false
}

// Default returns the embedded survey definition.
func Default() (*Definition, error) {
	return Parse(defaultDefinition)
}

// Load reads a survey definition from a YAML file. An empty path selects
// the embedded default.
func Load(path string) (*Definition, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read survey definition: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes and validates a YAML survey definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse survey definition: %w", err)
	}
	def.normalize()
	if err := def.validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func (d *Definition) normalize() {
	for i := range d.AnswerKeys {
		k := &d.AnswerKeys[i]
		k.Name = strings.TrimSpace(k.Name)
		k.Question = strings.TrimSpace(k.Question)
		k.Correct = trimAll(k.Correct)
		k.Invalid = trimAll(k.Invalid)
		if k.Name == "" {
			k.Name = k.Question
		}
	}
}

func (d *Definition) validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, k := range d.AnswerKeys {
		if k.Question == "" {
			errs = append(errs, fmt.Errorf("answer key %d: question is required", i))
			continue
		}
		if len(k.Correct) == 0 {
			errs = append(errs, fmt.Errorf("answer key %q: at least one correct option is required", k.Name))
		}
		if seen[k.Question] {
			errs = append(errs, fmt.Errorf("answer key %q: duplicate question", k.Name))
		}
		seen[k.Question] = true
	}
	for i, p := range d.Grouped {
		if p.Prefix == "" {
			errs = append(errs, fmt.Errorf("grouped question %d: prefix is required", i))
		}
	}
	return errors.Join(errs...)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}
