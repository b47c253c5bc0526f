package main

import (
	"crypto/rand"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed questions.json
var defaultCatalog []byte

// Deck is a finite, one-shot sequence of questions. The order is fixed at
// construction (optionally shuffled once) and stable for the life of the
// deck; a new session gets a new deck.
type Deck struct {
	questions []Question
	cursor    int
}

// NewDeck builds a deck over the given catalog. With shuffle set, the order
// is randomized once, using the same Fisher-Yates over crypto/rand as the
// game id generator.
func NewDeck(questions []Question, shuffle bool) *Deck {
	qs := make([]Question, len(questions))
	copy(qs, questions)

	if shuffle {
		for i := len(qs) - 1; i > 0; i-- {
			var b [1]byte
			if _, err := rand.Read(b[:]); err != nil {
				continue
			}
			j := int(b[0]) % (i + 1)
			qs[i], qs[j] = qs[j], qs[i]
		}
	}

	return &Deck{questions: qs}
}

// Next returns the next question, or false once the deck is exhausted.
// Exhaustion is a normal terminal signal, not an error.
func (d *Deck) Next() (Question, bool) {
	if d.cursor >= len(d.questions) {
		return Question{}, false
	}

	q := d.questions[d.cursor]
	d.cursor++

	return q, true
}

// Remaining reports how many questions have not been drawn yet.
func (d *Deck) Remaining() int {
	return len(d.questions) - d.cursor
}

// LoadCatalog reads a question catalog from path, or the embedded default
// catalog when path is empty.
func LoadCatalog(path string) ([]Question, error) {
	data := defaultCatalog

	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read question catalog: %w", err)
		}
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse question catalog: %w", err)
	}

	if err := validateCatalog(questions); err != nil {
		return nil, err
	}

	return questions, nil
}

func validateCatalog(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("question catalog is empty")
	}

	seen := make(map[int]bool, len(questions))

	for _, q := range questions {
		if seen[q.Number] {
			return fmt.Errorf("question %d: duplicate question number", q.Number)
		}
		seen[q.Number] = true

		if q.Points <= 0 {
			return fmt.Errorf("question %d: points must be positive, got %d", q.Number, q.Points)
		}
		if len(q.Answers) < 2 {
			return fmt.Errorf("question %d: needs at least two answers", q.Number)
		}

		good := 0
		for _, a := range q.Answers {
			if a.Good {
				good++
			}
		}
		if good != 1 {
			return fmt.Errorf("question %d: exactly one answer must be good, got %d", q.Number, good)
		}
	}

	return nil
}

// correctAnswer returns the single good answer of a validated question.
func correctAnswer(q Question) Answer {
	for _, a := range q.Answers {
		if a.Good {
			return a
		}
	}
	return Answer{}
}
