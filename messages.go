package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire model for the buzz game. Commands arrive untagged and are
// told apart by which fields are present; responses and state-change
// events carry an explicit upper-snake "type" tag.

// Answer is one possible answer to a question. Good marks the single
// correct answer; it is stripped before questions go out to players.
type Answer struct {
	Number int    `json:"number"`
	Label  string `json:"label"`
	Good   bool   `json:"good"`
}

// Question is one entry of the deck, immutable once constructed.
type Question struct {
	Number  int      `json:"number"`
	Label   string   `json:"label"`
	Points  int      `json:"points"`
	Answers []Answer `json:"answers"`
}

// PlayerAnswer echoes a submitted answer and whether it was correct.
type PlayerAnswer struct {
	PlayerName string `json:"playerName"`
	Answer     Answer `json:"answer"`
}

// Buzz names the player who won the buzz race.
type Buzz struct {
	Author string `json:"author"`
}

// PlayerScore carries a player's current score. Update is true when the
// score just changed due to a good answer; GoodAnswer then holds its label.
type PlayerScore struct {
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
	GoodAnswer string `json:"goodAnswer"`
	Update     bool   `json:"update"`
}

// ErrorMessage is the payload of an ERROR event.
type ErrorMessage struct {
	Message string `json:"message"`
}

// ---- Commands ----

type JoinCommand struct {
	Name string `json:"name"`
}

type BuzzCommand struct {
	PlayerName string `json:"playerName"`
}

type AnswerCommand struct {
	PlayerName     string `json:"playerName"`
	QuestionNumber int    `json:"questionNumber"`
	AnswerNumber   int    `json:"answerNumber"`
}

var errUnknownCommand = errors.New("unrecognized command shape")

// ParseCommand decodes an inbound command, distinguishing the three shapes
// by field presence. The most specific shape wins, so an answer is never
// mistaken for a buzz.
func ParseCommand(data []byte) (any, error) {
	var probe struct {
		Name           *string `json:"name"`
		PlayerName     *string `json:"playerName"`
		QuestionNumber *int    `json:"questionNumber"`
		AnswerNumber   *int    `json:"answerNumber"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}

	switch {
	case probe.PlayerName != nil && probe.QuestionNumber != nil && probe.AnswerNumber != nil:
		return AnswerCommand{
			PlayerName:     *probe.PlayerName,
			QuestionNumber: *probe.QuestionNumber,
			AnswerNumber:   *probe.AnswerNumber,
		}, nil
	case probe.PlayerName != nil:
		return BuzzCommand{PlayerName: *probe.PlayerName}, nil
	case probe.Name != nil:
		return JoinCommand{Name: *probe.Name}, nil
	default:
		return nil, errUnknownCommand
	}
}

// ---- Responses ----

const (
	responsePlayerAdded      = "PLAYER_ADDED"
	responseBuzzRegistered   = "BUZZ_REGISTERED"
	responseAnswerRegistered = "ANSWER_REGISTERED"
	responseScoreUpdated     = "SCORE_UPDATED"
	responseError            = "ERROR"
)

type PlayerAddedResponse struct {
	Type  string `json:"type"`
	Ready bool   `json:"ready"`
}

type BuzzRegisteredResponse struct {
	Type string `json:"type"`
}

type AnswerRegisteredResponse struct {
	Type string `json:"type"`
}

type ScoreUpdatedResponse struct {
	Type    string      `json:"type"`
	Message PlayerScore `json:"message"`
}

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func playerAdded(ready bool) PlayerAddedResponse {
	return PlayerAddedResponse{Type: responsePlayerAdded, Ready: ready}
}

func buzzRegistered() BuzzRegisteredResponse {
	return BuzzRegisteredResponse{Type: responseBuzzRegistered}
}

func answerRegistered() AnswerRegisteredResponse {
	return AnswerRegisteredResponse{Type: responseAnswerRegistered}
}

func scoreUpdated(score PlayerScore) ScoreUpdatedResponse {
	return ScoreUpdatedResponse{Type: responseScoreUpdated, Message: score}
}

func errorResponse(message string, code int) ErrorResponse {
	return ErrorResponse{Type: responseError, Message: message, Code: code}
}

// ---- State-change events ----

type StateChangeType string

const (
	EventGameStart      StateChangeType = "GAME_START"
	EventGameEnd        StateChangeType = "GAME_END"
	EventCanBuzz        StateChangeType = "CAN_BUZZ"
	EventNewPlayerScore StateChangeType = "NEW_PLAYER_SCORE"
	EventNewQuestion    StateChangeType = "NEW_QUESTION"
	EventNewBuzz        StateChangeType = "NEW_BUZZ"
	EventNewAnswer      StateChangeType = "NEW_ANSWER"
	EventError          StateChangeType = "ERROR"
)

// StateChange is the notification pushed to every connected player.
// Message holds a per-type payload; score events additionally carry the
// full player-name list and the configured minimum player count.
type StateChange struct {
	Type              StateChangeType `json:"type"`
	CanBuzz           bool            `json:"canBuzz"`
	Message           any             `json:"message,omitempty"`
	Players           []string        `json:"players,omitempty"`
	RequiredNbPlayers int             `json:"requiredNbPlayers"`
}

// UnmarshalJSON restores the typed payload for the event's type, so a
// decoded StateChange compares equal to the one that was sent.
func (s *StateChange) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type              StateChangeType `json:"type"`
		CanBuzz           bool            `json:"canBuzz"`
		Message           json.RawMessage `json:"message"`
		Players           []string        `json:"players"`
		RequiredNbPlayers int             `json:"requiredNbPlayers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Type = raw.Type
	s.CanBuzz = raw.CanBuzz
	s.Players = raw.Players
	s.RequiredNbPlayers = raw.RequiredNbPlayers
	s.Message = nil

	if len(raw.Message) == 0 {
		return nil
	}

	decode := func(v any) error {
		return json.Unmarshal(raw.Message, v)
	}

	switch raw.Type {
	case EventNewQuestion:
		var q Question
		if err := decode(&q); err != nil {
			return err
		}
		s.Message = q
	case EventNewAnswer:
		var a PlayerAnswer
		if err := decode(&a); err != nil {
			return err
		}
		s.Message = a
	case EventNewBuzz:
		var b Buzz
		if err := decode(&b); err != nil {
			return err
		}
		s.Message = b
	case EventNewPlayerScore:
		var p PlayerScore
		if err := decode(&p); err != nil {
			return err
		}
		s.Message = p
	case EventError:
		var e ErrorMessage
		if err := decode(&e); err != nil {
			return err
		}
		s.Message = e
	}

	return nil
}

func startEvent() StateChange {
	return StateChange{Type: EventGameStart}
}

func endEvent() StateChange {
	return StateChange{Type: EventGameEnd}
}

func canBuzzEvent(canBuzz bool) StateChange {
	return StateChange{Type: EventCanBuzz, CanBuzz: canBuzz}
}

// questionEvent redacts the good-answer flag before the question reaches
// players; the session keeps the unredacted copy for evaluation.
func questionEvent(question Question) StateChange {
	answers := make([]Answer, len(question.Answers))
	for i, a := range question.Answers {
		a.Good = false
		answers[i] = a
	}
	question.Answers = answers

	return StateChange{Type: EventNewQuestion, Message: question}
}

func buzzEvent(author string) StateChange {
	return StateChange{Type: EventNewBuzz, Message: Buzz{Author: author}}
}

func answerEvent(answer PlayerAnswer) StateChange {
	return StateChange{Type: EventNewAnswer, Message: answer}
}

func scoreEvent(score PlayerScore, players []string, requiredNbPlayers int) StateChange {
	return StateChange{
		Type:              EventNewPlayerScore,
		Message:           score,
		Players:           players,
		RequiredNbPlayers: requiredNbPlayers,
	}
}

func errorEvent(message string) StateChange {
	return StateChange{Type: EventError, Message: ErrorMessage{Message: message}}
}
