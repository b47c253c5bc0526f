package main

import (
	"errors"
	"sort"
	"sync"
)

// Phase is the session's position in its state machine. Transitions are
// monotonic per question cycle: WaitingForPlayers → QuestionOpen →
// AnswerLocked → (QuestionOpen | Ended).
type Phase int

const (
	WaitingForPlayers Phase = iota
	QuestionOpen
	AnswerLocked
	Ended
)

func (p Phase) String() string {
	switch p {
	case WaitingForPlayers:
		return "waiting_for_players"
	case QuestionOpen:
		return "question_open"
	case AnswerLocked:
		return "answer_locked"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

var (
	ErrGameAlreadyStarted  = errors.New("game is already started")
	ErrDuplicateName       = errors.New("a player with this name has already joined")
	ErrGameFull            = errors.New("the game is full")
	ErrNotQuestionOpen     = errors.New("no question is open for buzzing")
	ErrUnknownPlayer       = errors.New("player has not joined this game")
	ErrAlreadyBuzzed       = errors.New("someone else has already buzzed")
	ErrNotBuzzAuthor       = errors.New("buzz author is different from answer author")
	ErrStaleQuestionNumber = errors.New("answer does not match the current question")
	ErrNoActiveQuestion    = errors.New("no question is currently active")
)

// AnswerResult is the outcome of a successful answer evaluation. The
// session has already advanced when it is returned: Next holds the new
// open question, or nil when the deck is exhausted and the game ended.
type AnswerResult struct {
	Good       bool
	Points     int
	GoodAnswer Answer
	Given      Answer
	Next       *Question
}

// GameSession is the authoritative shared state of one game: roster, phase,
// buzz lock and current question. Every operation takes the session mutex,
// so invariants hold under arbitrary interleaving; the coordinator
// additionally serializes whole commands so broadcasts keep their order.
type GameSession struct {
	mu sync.Mutex

	phase      Phase
	players    map[string]chan any
	minPlayers int
	maxPlayers int

	buzzAuthor      string
	currentQuestion Question
	goodAnswer      Answer

	deck *Deck
}

func NewGameSession(deck *Deck, minPlayers, maxPlayers int) *GameSession {
	return &GameSession{
		phase:      WaitingForPlayers,
		players:    make(map[string]chan any),
		minPlayers: minPlayers,
		maxPlayers: maxPlayers,
		deck:       deck,
	}
}

// Join registers a player and their notification stream. Accepted only
// while waiting for players; ready reports whether the roster has reached
// the configured minimum, in which case the caller drives Advance.
func (g *GameSession) Join(name string, stream chan any) (ready bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != WaitingForPlayers {
		return false, ErrGameAlreadyStarted
	}
	if _, exists := g.players[name]; exists {
		return false, ErrDuplicateName
	}
	if len(g.players) >= g.maxPlayers {
		return false, ErrGameFull
	}

	g.players[name] = stream

	return len(g.players) >= g.minPlayers, nil
}

// TryBuzz grants the buzz lock to name. Strict compare-and-transition:
// under concurrent calls exactly one caller sees nil.
func (g *GameSession) TryBuzz(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.phase {
	case QuestionOpen:
	case AnswerLocked:
		return ErrAlreadyBuzzed
	default:
		return ErrNotQuestionOpen
	}

	if _, joined := g.players[name]; !joined {
		return ErrUnknownPlayer
	}

	g.buzzAuthor = name
	g.phase = AnswerLocked

	return nil
}

// EvaluateAnswer scores an answer from the current buzz holder. On success
// (right or wrong) the buzz lock is released and the session advances to
// the next question, or to Ended when the deck is exhausted; evaluation and
// advance are one atomic step so the phase invariants never break.
func (g *GameSession) EvaluateAnswer(name string, questionNumber, answerNumber int) (AnswerResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != QuestionOpen && g.phase != AnswerLocked {
		return AnswerResult{}, ErrNoActiveQuestion
	}
	if g.buzzAuthor == "" || g.buzzAuthor != name {
		return AnswerResult{}, ErrNotBuzzAuthor
	}
	if g.currentQuestion.Number != questionNumber {
		return AnswerResult{}, ErrStaleQuestionNumber
	}

	good := g.goodAnswer.Number == answerNumber

	// Echo what was submitted; an out-of-range number keeps only its
	// number so nothing about the real answers leaks.
	given := Answer{Number: answerNumber}
	for _, a := range g.currentQuestion.Answers {
		if a.Number == answerNumber {
			given = a
			break
		}
	}

	result := AnswerResult{
		Good:       good,
		Points:     g.currentQuestion.Points,
		GoodAnswer: g.goodAnswer,
		Given:      given,
	}

	if next, ok := g.advanceLocked(); ok {
		result.Next = &next
	}

	return result, nil
}

// Advance moves the session out of the lobby once enough players joined,
// opening the first question or ending immediately on an empty deck.
func (g *GameSession) Advance() (Question, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.advanceLocked()
}

// advanceLocked assumes g.mu is already held.
func (g *GameSession) advanceLocked() (Question, bool) {
	g.buzzAuthor = ""

	next, ok := g.deck.Next()
	if !ok {
		g.currentQuestion = Question{}
		g.goodAnswer = Answer{}
		g.phase = Ended
		return Question{}, false
	}

	g.currentQuestion = next
	g.goodAnswer = correctAnswer(next)
	g.phase = QuestionOpen

	return next, true
}

// DropStream closes a player's notification channel after a delivery
// failure. The roster entry survives; only the live stream is lost.
func (g *GameSession) DropStream(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if stream, ok := g.players[name]; ok && stream != nil {
		close(stream)
		g.players[name] = nil
	}
}

// Streams snapshots the live notification channels for fan-out.
func (g *GameSession) Streams() map[string]chan any {
	g.mu.Lock()
	defer g.mu.Unlock()

	streams := make(map[string]chan any, len(g.players))
	for name, stream := range g.players {
		if stream != nil {
			streams[name] = stream
		}
	}
	return streams
}

// PlayerNames lists every joined player, dropped streams included,
// in stable order.
func (g *GameSession) PlayerNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.players))
	for name := range g.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *GameSession) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.phase
}

func (g *GameSession) BuzzAuthor() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.buzzAuthor
}

// CurrentQuestion returns the open question, if any.
func (g *GameSession) CurrentQuestion() (Question, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != QuestionOpen && g.phase != AnswerLocked {
		return Question{}, false
	}
	return g.currentQuestion, true
}
