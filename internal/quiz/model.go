// Package quiz defines the immutable quiz content tree handed to rooms and the
// per-player score state evolved by gameplay.
package quiz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQuestionOutOfRange is returned when a question index does not exist in the quiz.
var ErrQuestionOutOfRange = errors.New("question out of range")

// ErrUnknownOption is returned when an answer option does not exist on a question.
var ErrUnknownOption = errors.New("unknown answer option")

// Answer is one selectable option of a question.
type Answer struct {
	Option  int    `json:"option"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is a single quiz question with its answer options.
type Question struct {
	Question string   `json:"question"`
	Body     string   `json:"body,omitempty"`
	Answers  []Answer `json:"answers"`
}

// Quiz is an immutable content snapshot. Rooms hold a pointer to it and never
// modify it.
type Quiz struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

// Validate checks structural invariants of the quiz.
//
// Postcondition: Returns nil if the quiz is usable, or an error describing all violations.
func (q *Quiz) Validate() error {
	var errs []string
	if q.ID == "" {
		errs = append(errs, "quiz id must not be empty")
	}
	if q.Name == "" {
		errs = append(errs, "quiz name must not be empty")
	}
	if len(q.Questions) == 0 {
		errs = append(errs, "quiz must have at least one question")
	}
	for i, question := range q.Questions {
		if question.Question == "" {
			errs = append(errs, fmt.Sprintf("question %d: text must not be empty", i))
		}
		if len(question.Answers) < 2 {
			errs = append(errs, fmt.Sprintf("question %d: must have at least two answers", i))
		}
		seen := make(map[int]bool, len(question.Answers))
		correct := 0
		for _, a := range question.Answers {
			if seen[a.Option] {
				errs = append(errs, fmt.Sprintf("question %d: duplicate option %d", i, a.Option))
			}
			seen[a.Option] = true
			if a.Correct {
				correct++
			}
		}
		if correct == 0 {
			errs = append(errs, fmt.Sprintf("question %d: must have a correct answer", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid quiz %q: %s", q.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Check reports whether option is a correct answer to the question at index.
//
// Postcondition: Returns ErrQuestionOutOfRange or ErrUnknownOption for invalid input.
func (q *Quiz) Check(index, option int) (bool, error) {
	if index < 0 || index >= len(q.Questions) {
		return false, fmt.Errorf("question %d of %d: %w", index, len(q.Questions), ErrQuestionOutOfRange)
	}
	for _, a := range q.Questions[index].Answers {
		if a.Option == option {
			return a.Correct, nil
		}
	}
	return false, fmt.Errorf("question %d option %d: %w", index, option, ErrUnknownOption)
}

// Player is the score state of one participant in a room.
type Player struct {
	Name    string `json:"name"`
	Correct int    `json:"correct"`
	Wrong   int    `json:"wrong"`
	Points  int    `json:"points"`
	// Streak counts consecutive correct answers; reset by a wrong answer.
	Streak int `json:"streak"`
}

// Record applies one answered question to the player.
func (p *Player) Record(correct bool, points int) {
	if correct {
		p.Correct++
		p.Streak++
	} else {
		p.Wrong++
		p.Streak = 0
	}
	p.Points += points
}
