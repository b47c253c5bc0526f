package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const storeTimeout = 5 * time.Second

// Player is a persisted player record.
type Player struct {
	ID    string
	Name  string
	Score int
}

// ErrPlayerExists reports a join for a name that already has a player
// record, which may predate this session.
var ErrPlayerExists = errors.New("a player with this name already exists")

var ErrNameRequired = errors.New("player name is required")

// PlayerStore is the persistence collaborator. Failures propagate to the
// caller as errors; the coordinator never retries internally.
type PlayerStore interface {
	FindPlayer(ctx context.Context, name string) (*Player, error)
	InsertPlayer(ctx context.Context, name string) (*Player, error)
	UpdateScore(ctx context.Context, name string, score int) (*Player, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// Coordinator handles the three player commands: validate against session
// state, persist, mutate the session, and fan out state-change events.
//
// One mutex serializes whole commands, so any two players observe the same
// relative event order for the same transition. The lock is held across
// persistence calls (each bounded by storeTimeout) and across the
// post-answer delay, as the session is idle during both anyway.
type Coordinator struct {
	mu sync.Mutex

	session *GameSession
	store   PlayerStore
	bcast   *Broadcaster
	log     *slog.Logger

	answerDelay time.Duration
}

func NewCoordinator(session *GameSession, store PlayerStore, bcast *Broadcaster, log *slog.Logger, answerDelay time.Duration) *Coordinator {
	return &Coordinator{
		session:     session,
		store:       store,
		bcast:       bcast,
		log:         log,
		answerDelay: answerDelay,
	}
}

// NewStream allocates a notification channel for one player connection.
func (co *Coordinator) NewStream() chan any {
	return make(chan any, 8)
}

// Join adds a player to the lobby: persists a fresh record, registers the
// notification stream, and announces the newcomer's zero score. When the
// roster reaches the minimum, the game starts and the first question opens.
func (co *Coordinator) Join(ctx context.Context, name string, stream chan any) (PlayerAddedResponse, error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	if name == "" {
		return PlayerAddedResponse{}, ErrNameRequired
	}
	if co.session.Phase() != WaitingForPlayers {
		return PlayerAddedResponse{}, ErrGameAlreadyStarted
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	exists, err := co.store.ExistsByName(sctx, name)
	if err != nil {
		return PlayerAddedResponse{}, fmt.Errorf("join %q: %w", name, err)
	}
	if exists {
		return PlayerAddedResponse{}, ErrPlayerExists
	}

	if _, err := co.store.InsertPlayer(sctx, name); err != nil {
		return PlayerAddedResponse{}, fmt.Errorf("join %q: %w", name, err)
	}

	ready, err := co.session.Join(name, stream)
	if err != nil {
		return PlayerAddedResponse{}, err
	}

	co.log.Info("player joined", "player", name, "ready", ready)

	co.publish(scoreEvent(
		PlayerScore{PlayerName: name, Score: 0, Update: false},
		co.session.PlayerNames(),
		co.session.minPlayers,
	))

	if ready {
		co.publish(startEvent())
		co.openNextQuestion()
	}

	return playerAdded(ready), nil
}

// Buzz grants the buzz lock to the first caller while a question is open.
// A denied buzz is a normal race loss: the caller gets the error, nobody
// else hears about it.
func (co *Coordinator) Buzz(name string) (BuzzRegisteredResponse, error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	if err := co.session.TryBuzz(name); err != nil {
		return BuzzRegisteredResponse{}, err
	}

	co.log.Debug("buzz granted", "player", name)

	co.publish(canBuzzEvent(false), buzzEvent(name))

	return buzzRegistered(), nil
}

// Answer evaluates the buzz holder's answer, persists any points won, and
// after a short pause opens the next question or ends the game. The pause
// gives clients time to show the result before it is replaced.
func (co *Coordinator) Answer(ctx context.Context, name string, questionNumber, answerNumber int) (any, error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	result, err := co.session.EvaluateAnswer(name, questionNumber, answerNumber)
	if err != nil {
		return nil, err
	}

	co.log.Info("answer evaluated",
		"player", name,
		"question", questionNumber,
		"answer", answerNumber,
		"good", result.Good,
	)

	co.publish(answerEvent(PlayerAnswer{PlayerName: name, Answer: result.Given}))

	// A wrong answer needs no persistence at all, so a store outage
	// cannot fail it.
	if !result.Good {
		co.finishRound(result)
		return answerRegistered(), nil
	}

	score, err := co.settleScore(ctx, name, result)
	if err != nil {
		// The session has already advanced; the score mutation is the
		// only thing not applied. Finish the fan-out before reporting.
		co.log.Error("score persistence failed", "player", name, "error", err)
		co.publish(errorEvent("score could not be saved"))
		co.finishRound(result)
		return nil, err
	}

	co.publish(scoreEvent(score, co.session.PlayerNames(), co.session.minPlayers))

	co.finishRound(result)

	return scoreUpdated(score), nil
}

// settleScore looks up the player's record and applies the reward. Called
// only for a good answer.
func (co *Coordinator) settleScore(ctx context.Context, name string, result AnswerResult) (PlayerScore, error) {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	player, err := co.store.FindPlayer(sctx, name)
	if err != nil {
		return PlayerScore{}, fmt.Errorf("find player %q: %w", name, err)
	}
	if player == nil {
		return PlayerScore{}, fmt.Errorf("player %q has no record", name)
	}

	player, err = co.store.UpdateScore(sctx, name, player.Score+result.Points)
	if err != nil {
		return PlayerScore{}, fmt.Errorf("update score for %q: %w", name, err)
	}

	return PlayerScore{
		PlayerName: name,
		Score:      player.Score,
		GoodAnswer: result.GoodAnswer.Label,
		Update:     true,
	}, nil
}

// finishRound pauses, then broadcasts the already-advanced session's next
// question, or the end of the game.
func (co *Coordinator) finishRound(result AnswerResult) {
	if co.answerDelay > 0 {
		time.Sleep(co.answerDelay)
	}

	if result.Next != nil {
		co.publish(canBuzzEvent(true), questionEvent(*result.Next))
		return
	}

	co.log.Info("deck exhausted, game over")
	co.publish(endEvent())
}

// openNextQuestion drives the advance transition out of the lobby.
func (co *Coordinator) openNextQuestion() {
	if next, ok := co.session.Advance(); ok {
		co.publish(canBuzzEvent(true), questionEvent(next))
		return
	}

	co.log.Info("deck exhausted, game over")
	co.publish(endEvent())
}

// Reply delivers a command response or error to a single player's stream.
// It runs under the coordinator lock so it can never race with a stream
// being closed.
func (co *Coordinator) Reply(name string, msg any) {
	co.mu.Lock()
	defer co.mu.Unlock()

	stream, ok := co.session.Streams()[name]
	if !ok {
		return
	}

	select {
	case stream <- msg:
	default:
		co.session.DropStream(name)
	}
}

// Disconnect releases a player's notification stream after their
// connection went away. The roster entry and stored score survive;
// reconnection is not supported.
func (co *Coordinator) Disconnect(name string) {
	if name == "" {
		return
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	co.session.DropStream(name)
	co.log.Debug("player stream closed", "player", name)
}

// publish fans events out in order, dropping streams that can't keep up.
func (co *Coordinator) publish(events ...StateChange) {
	for _, event := range events {
		for _, name := range co.bcast.Publish(event, co.session.Streams()) {
			co.session.DropStream(name)
		}
	}
}
