package quiz

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlQuizFile is the top-level YAML structure for quiz files.
type yamlQuizFile struct {
	Quiz yamlQuiz `yaml:"quiz"`
}

// yamlQuiz is the YAML representation of a quiz.
type yamlQuiz struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Questions   []yamlQuestion `yaml:"questions"`
}

// yamlQuestion is the YAML representation of a question.
type yamlQuestion struct {
	Question string       `yaml:"question"`
	Body     string       `yaml:"body"`
	Answers  []yamlAnswer `yaml:"answers"`
}

// yamlAnswer is the YAML representation of an answer option.
type yamlAnswer struct {
	Option  int    `yaml:"option"`
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

// LoadFromFile reads and validates a single quiz YAML file.
//
// Precondition: path must point to a valid YAML quiz file.
// Postcondition: Returns a validated Quiz or a non-nil error.
func LoadFromFile(path string) (*Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading quiz file %s: %w", path, err)
	}
	q, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

// LoadFromBytes parses and validates a quiz from YAML bytes.
//
// Postcondition: Returns a validated Quiz or a non-nil error.
func LoadFromBytes(data []byte) (*Quiz, error) {
	var file yamlQuizFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing quiz YAML: %w", err)
	}

	q := convertYAMLQuiz(file.Quiz)
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("validating quiz: %w", err)
	}
	return q, nil
}

// LoadDir loads every .yaml/.yml file in dir as a quiz.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all validated quizzes or the first error encountered.
func LoadDir(dir string) ([]*Quiz, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading quiz directory %s: %w", dir, err)
	}

	var quizzes []*Quiz
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		q, err := LoadFromFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, nil
}

func convertYAMLQuiz(y yamlQuiz) *Quiz {
	q := &Quiz{
		ID:          y.ID,
		Name:        y.Name,
		Description: strings.TrimSpace(y.Description),
		Questions:   make([]Question, 0, len(y.Questions)),
	}
	for _, yq := range y.Questions {
		question := Question{
			Question: yq.Question,
			Body:     strings.TrimSpace(yq.Body),
			Answers:  make([]Answer, 0, len(yq.Answers)),
		}
		for _, ya := range yq.Answers {
			question.Answers = append(question.Answers, Answer{
				Option:  ya.Option,
				Text:    ya.Text,
				Correct: ya.Correct,
			})
		}
		q.Questions = append(q.Questions, question)
	}
	return q
}
