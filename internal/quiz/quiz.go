package quiz

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Option is one labeled answer choice for a question.
type Option struct {
	Label string `yaml:"label" json:"label"`
	Text  string `yaml:"text" json:"text"`
}

// Question is a single timed multiple-choice question.
type Question struct {
	ID        string   `yaml:"id" json:"id"`
	Prompt    string   `yaml:"prompt" json:"prompt"`
	Options   []Option `yaml:"options" json:"options"`
	Correct   string   `yaml:"correct" json:"-"`
	BudgetSec int      `yaml:"budget_sec" json:"budgetSec"`
}

// HasOption reports whether label names one of the question's options.
func (q Question) HasOption(label string) bool {
	for _, o := range q.Options {
		if o.Label == label {
			return true
		}
	}
	return false
}

// Quiz is an ordered question set supplied by the calling application.
type Quiz struct {
	Title     string     `yaml:"title" json:"title"`
	Questions []Question `yaml:"questions" json:"questions"`
}

const defaultBudgetSec = 20

// Validate checks the quiz is playable and fills in default time budgets.
func (qz *Quiz) Validate() error {
	if len(qz.Questions) == 0 {
		return fmt.Errorf("quiz %q has no questions", qz.Title)
	}

	for i := range qz.Questions {
		q := &qz.Questions[i]
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if q.BudgetSec <= 0 {
			q.BudgetSec = defaultBudgetSec
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %s: needs at least 2 options", q.ID)
		}
		if !q.HasOption(q.Correct) {
			return fmt.Errorf("question %s: correct label %q is not an option", q.ID, q.Correct)
		}
	}

	return nil
}

// LoadFile reads and validates a single quiz YAML file.
func LoadFile(path string) (*Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quiz file: %w", err)
	}

	var qz Quiz
	if err := yaml.Unmarshal(data, &qz); err != nil {
		return nil, fmt.Errorf("parse quiz file %s: %w", path, err)
	}
	if err := qz.Validate(); err != nil {
		return nil, err
	}

	return &qz, nil
}

// LoadDir loads every *.yaml quiz in a directory, keyed by file stem.
func LoadDir(dir string) (map[string]*Quiz, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	quizzes := make(map[string]*Quiz, len(paths))
	for _, path := range paths {
		qz, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		name := filepath.Base(path)
		quizzes[name[:len(name)-len(filepath.Ext(name))]] = qz
	}

	return quizzes, nil
}
