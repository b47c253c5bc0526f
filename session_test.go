package main

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func newTestSession(t *testing.T, questions, minPlayers, maxPlayers int) *GameSession {
	t.Helper()
	return NewGameSession(NewDeck(testCatalog(questions), false), minPlayers, maxPlayers)
}

func join(t *testing.T, g *GameSession, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := g.Join(name, make(chan any, 8)); err != nil {
			t.Fatalf("join %q: %v", name, err)
		}
	}
}

func TestJoinReportsReadyAtMinPlayers(t *testing.T) {
	g := newTestSession(t, 2, 3, 6)

	for i, name := range []string{"Ana", "Ben"} {
		ready, err := g.Join(name, make(chan any, 8))
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		if ready {
			t.Fatalf("join %d reported ready before reaching minPlayers", i)
		}
	}

	ready, err := g.Join("Cy", make(chan any, 8))
	if err != nil {
		t.Fatalf("third join: %v", err)
	}
	if !ready {
		t.Fatal("third join did not report ready with minPlayers=3")
	}

	if g.Phase() != WaitingForPlayers {
		t.Fatal("ready alone must not leave the lobby; the caller drives Advance")
	}
}

func TestJoinRejectsDuplicateName(t *testing.T) {
	g := newTestSession(t, 1, 3, 6)
	join(t, g, "Ana")

	if _, err := g.Join("Ana", make(chan any, 8)); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate join error = %v, want ErrDuplicateName", err)
	}

	if got := len(g.PlayerNames()); got != 1 {
		t.Fatalf("roster size = %d after rejected join, want 1", got)
	}
}

func TestJoinRejectsWhenFull(t *testing.T) {
	g := newTestSession(t, 1, 1, 2)
	join(t, g, "Ana", "Ben")

	if _, err := g.Join("Cy", make(chan any, 8)); !errors.Is(err, ErrGameFull) {
		t.Fatalf("join on full roster error = %v, want ErrGameFull", err)
	}
}

func TestJoinGatingAfterStart(t *testing.T) {
	g := newTestSession(t, 2, 2, 6)
	join(t, g, "Ana", "Ben")
	g.Advance()

	if _, err := g.Join("Cy", make(chan any, 8)); !errors.Is(err, ErrGameAlreadyStarted) {
		t.Fatalf("join after start error = %v, want ErrGameAlreadyStarted", err)
	}

	if got := len(g.PlayerNames()); got != 2 {
		t.Fatalf("roster size = %d after rejected join, want 2", got)
	}

	// Still rejected while an answer is locked, and after the game ends.
	if err := g.TryBuzz("Ana"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Join("Cy", make(chan any, 8)); !errors.Is(err, ErrGameAlreadyStarted) {
		t.Fatalf("join while locked error = %v, want ErrGameAlreadyStarted", err)
	}
}

func TestTryBuzzSingleWinner(t *testing.T) {
	const players = 50

	g := newTestSession(t, 1, 1, players)

	names := make([]string, players)
	for i := range names {
		names[i] = fmt.Sprintf("player-%d", i)
	}
	join(t, g, names...)
	g.Advance()

	var wg sync.WaitGroup
	granted := make(chan string, players)

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			switch err := g.TryBuzz(name); {
			case err == nil:
				granted <- name
			case errors.Is(err, ErrAlreadyBuzzed):
			default:
				t.Errorf("buzz %q: unexpected error %v", name, err)
			}
		}(name)
	}

	wg.Wait()
	close(granted)

	var winners []string
	for name := range granted {
		winners = append(winners, name)
	}

	if len(winners) != 1 {
		t.Fatalf("%d concurrent buzzes granted, want exactly 1", len(winners))
	}
	if g.BuzzAuthor() != winners[0] {
		t.Fatalf("buzzAuthor = %q, want the granted caller %q", g.BuzzAuthor(), winners[0])
	}
	if g.Phase() != AnswerLocked {
		t.Fatalf("phase = %s after granted buzz, want answer_locked", g.Phase())
	}
}

func TestTryBuzzOutsideQuestionOpen(t *testing.T) {
	g := newTestSession(t, 1, 1, 6)
	join(t, g, "Ana")

	if err := g.TryBuzz("Ana"); !errors.Is(err, ErrNotQuestionOpen) {
		t.Fatalf("buzz in lobby error = %v, want ErrNotQuestionOpen", err)
	}

	g.Advance()

	if err := g.TryBuzz("ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("buzz by non-player error = %v, want ErrUnknownPlayer", err)
	}
	if g.Phase() != QuestionOpen || g.BuzzAuthor() != "" {
		t.Fatal("rejected buzz mutated session state")
	}
}

func TestEvaluateAnswerAuthorization(t *testing.T) {
	g := newTestSession(t, 1, 2, 6)
	join(t, g, "Ana", "Ben")
	g.Advance()

	if _, err := g.EvaluateAnswer("Ana", 0, 0); !errors.Is(err, ErrNotBuzzAuthor) {
		t.Fatalf("answer without buzz error = %v, want ErrNotBuzzAuthor", err)
	}

	if err := g.TryBuzz("Ana"); err != nil {
		t.Fatal(err)
	}

	if _, err := g.EvaluateAnswer("Ben", 0, 0); !errors.Is(err, ErrNotBuzzAuthor) {
		t.Fatalf("answer by non-author error = %v, want ErrNotBuzzAuthor", err)
	}

	if g.Phase() != AnswerLocked || g.BuzzAuthor() != "Ana" {
		t.Fatal("rejected answer mutated session state")
	}
}

func TestEvaluateAnswerStaleQuestionNumber(t *testing.T) {
	g := newTestSession(t, 2, 1, 6)
	join(t, g, "Ana")
	g.Advance()

	if err := g.TryBuzz("Ana"); err != nil {
		t.Fatal(err)
	}

	if _, err := g.EvaluateAnswer("Ana", 7, 0); !errors.Is(err, ErrStaleQuestionNumber) {
		t.Fatalf("stale answer error = %v, want ErrStaleQuestionNumber", err)
	}

	if g.Phase() != AnswerLocked {
		t.Fatal("stale answer mutated phase")
	}
}

func TestEvaluateAnswerNoActiveQuestion(t *testing.T) {
	g := newTestSession(t, 1, 1, 6)
	join(t, g, "Ana")

	if _, err := g.EvaluateAnswer("Ana", 0, 0); !errors.Is(err, ErrNoActiveQuestion) {
		t.Fatalf("answer in lobby error = %v, want ErrNoActiveQuestion", err)
	}
}

func TestEvaluateAnswerAdvancesAndScores(t *testing.T) {
	g := newTestSession(t, 2, 1, 6)
	join(t, g, "Ana")
	g.Advance()

	if err := g.TryBuzz("Ana"); err != nil {
		t.Fatal(err)
	}

	// testCatalog marks answer 0 good on every question.
	result, err := g.EvaluateAnswer("Ana", 0, 0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if !result.Good {
		t.Fatal("good answer evaluated as wrong")
	}
	if result.Points != 5 {
		t.Fatalf("points = %d, want 5", result.Points)
	}
	if result.Next == nil || result.Next.Number != 1 {
		t.Fatalf("next question = %+v, want question 1", result.Next)
	}

	if g.Phase() != QuestionOpen {
		t.Fatalf("phase = %s after advance, want question_open", g.Phase())
	}
	if g.BuzzAuthor() != "" {
		t.Fatal("buzz author not cleared on advance")
	}
}

func TestEvaluateWrongAnswerStillAdvances(t *testing.T) {
	g := newTestSession(t, 2, 1, 6)
	join(t, g, "Ana")
	g.Advance()

	if err := g.TryBuzz("Ana"); err != nil {
		t.Fatal(err)
	}

	result, err := g.EvaluateAnswer("Ana", 0, 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if result.Good {
		t.Fatal("wrong answer evaluated as good")
	}
	if result.Given.Number != 1 {
		t.Fatalf("echoed answer = %d, want the chosen 1", result.Given.Number)
	}
	if result.GoodAnswer.Number != 0 {
		t.Fatalf("good answer = %d, want 0", result.GoodAnswer.Number)
	}
	if g.Phase() != QuestionOpen {
		t.Fatalf("phase = %s, want question_open", g.Phase())
	}
}

func TestEvaluateOutOfRangeAnswerEchoesOnlyTheNumber(t *testing.T) {
	g := newTestSession(t, 2, 1, 6)
	join(t, g, "Ana")
	g.Advance()

	if err := g.TryBuzz("Ana"); err != nil {
		t.Fatal(err)
	}

	result, err := g.EvaluateAnswer("Ana", 0, 99)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if result.Good {
		t.Fatal("out-of-range answer evaluated as good")
	}
	if result.Given.Number != 99 || result.Given.Label != "" || result.Given.Good {
		t.Fatalf("echoed answer = %+v, want bare number 99", result.Given)
	}
	if g.Phase() != QuestionOpen {
		t.Fatalf("phase = %s, want question_open", g.Phase())
	}
}

func TestDeckExhaustionEndsGame(t *testing.T) {
	g := newTestSession(t, 1, 1, 6)
	join(t, g, "Ana")
	g.Advance()

	if err := g.TryBuzz("Ana"); err != nil {
		t.Fatal(err)
	}

	result, err := g.EvaluateAnswer("Ana", 0, 0)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if result.Next != nil {
		t.Fatalf("next = %+v on exhausted deck, want nil", result.Next)
	}
	if g.Phase() != Ended {
		t.Fatalf("phase = %s, want ended", g.Phase())
	}
	if _, ok := g.CurrentQuestion(); ok {
		t.Fatal("ended session still reports a current question")
	}
	if g.BuzzAuthor() != "" {
		t.Fatal("ended session still holds a buzz author")
	}
}

// Phase never regresses: buzz author set implies answer_locked, current
// question set implies an open cycle.
func TestPhaseInvariants(t *testing.T) {
	g := newTestSession(t, 3, 1, 6)
	join(t, g, "Ana")

	check := func(stage string) {
		t.Helper()
		author := g.BuzzAuthor()
		_, hasQuestion := g.CurrentQuestion()
		phase := g.Phase()

		if (author != "") != (phase == AnswerLocked) {
			t.Fatalf("%s: buzzAuthor %q with phase %s", stage, author, phase)
		}
		if hasQuestion != (phase == QuestionOpen || phase == AnswerLocked) {
			t.Fatalf("%s: currentQuestion=%v with phase %s", stage, hasQuestion, phase)
		}
	}

	check("lobby")
	g.Advance()
	check("first question")

	for i := 0; i < 3; i++ {
		if g.Phase() == Ended {
			break
		}
		if err := g.TryBuzz("Ana"); err != nil {
			t.Fatal(err)
		}
		check("locked")
		if _, err := g.EvaluateAnswer("Ana", i, 1); err != nil {
			t.Fatal(err)
		}
		check("advanced")
	}

	if g.Phase() != Ended {
		t.Fatalf("phase = %s after exhausting the deck, want ended", g.Phase())
	}
}

func TestDropStreamKeepsRosterEntry(t *testing.T) {
	g := newTestSession(t, 1, 1, 6)

	stream := make(chan any, 1)
	if _, err := g.Join("Ana", stream); err != nil {
		t.Fatal(err)
	}

	g.DropStream("Ana")

	if _, open := <-stream; open {
		t.Fatal("dropped stream was not closed")
	}
	if got := len(g.PlayerNames()); got != 1 {
		t.Fatalf("roster size = %d after stream drop, want 1", got)
	}
	if _, live := g.Streams()["Ana"]; live {
		t.Fatal("dropped stream still offered for fan-out")
	}

	// A second drop must be a no-op, not a double close.
	g.DropStream("Ana")
}
