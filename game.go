package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one player's websocket connection: commands in, the player's
// notification stream out.
type Client struct {
	conn *websocket.Conn
	send chan any
	name string
}

func (c *Client) readPump(co *Coordinator) {
	defer func() {
		co.Disconnect(c.name)
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := ParseCommand(data)
		if err != nil {
			co.Reply(c.name, errorResponse(err.Error(), http.StatusBadRequest))
			continue
		}

		switch cmd := cmd.(type) {
		case BuzzCommand:
			resp, err := co.Buzz(cmd.PlayerName)
			if err != nil {
				co.Reply(c.name, errorResponse(err.Error(), statusForError(err)))
				continue
			}
			co.Reply(c.name, resp)

		case AnswerCommand:
			resp, err := co.Answer(context.Background(), cmd.PlayerName, cmd.QuestionNumber, cmd.AnswerNumber)
			if err != nil {
				co.Reply(c.name, errorResponse(err.Error(), statusForError(err)))
				continue
			}
			co.Reply(c.name, resp)

		case JoinCommand:
			co.Reply(c.name, errorResponse(ErrDuplicateName.Error(), http.StatusConflict))
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// serveWS upgrades the connection and runs the join handshake: the first
// client message must be a join command; afterwards the socket carries
// further commands inbound and responses plus state changes outbound.
func serveWS(co *Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return
		}

		cmd, err := ParseCommand(data)
		if err != nil {
			_ = conn.WriteJSON(errorResponse(err.Error(), http.StatusBadRequest))
			_ = conn.Close()
			return
		}

		join, ok := cmd.(JoinCommand)
		if !ok {
			_ = conn.WriteJSON(errorResponse("join first", http.StatusBadRequest))
			_ = conn.Close()
			return
		}

		client := &Client{
			conn: conn,
			send: co.NewStream(),
			name: join.Name,
		}

		resp, err := co.Join(r.Context(), join.Name, client.send)
		if err != nil {
			_ = conn.WriteJSON(errorResponse(err.Error(), statusForError(err)))
			_ = conn.Close()
			return
		}

		// The join broadcast is already buffered on client.send; writing
		// the response before starting the pump keeps it first on the wire.
		_ = conn.WriteJSON(resp)

		go client.writePump()
		client.readPump(co)
	}
}

// statusForError maps a command rejection onto the code carried by the
// ERROR response.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrPlayerExists),
		errors.Is(err, ErrDuplicateName),
		errors.Is(err, ErrGameAlreadyStarted),
		errors.Is(err, ErrGameFull),
		errors.Is(err, ErrAlreadyBuzzed):
		return http.StatusConflict
	case errors.Is(err, ErrNotBuzzAuthor),
		errors.Is(err, ErrUnknownPlayer):
		return http.StatusForbidden
	case errors.Is(err, ErrNotQuestionOpen),
		errors.Is(err, ErrStaleQuestionNumber),
		errors.Is(err, ErrNoActiveQuestion),
		errors.Is(err, ErrNameRequired),
		errors.Is(err, errUnknownCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

const maxCommandBytes = 4 << 10

// handleCommand decodes one POSTed wire command and dispatches it when it
// matches the expected shape for the route.
func handleCommand(dispatch func(r *http.Request, cmd any) (any, error)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("unreadable request body", http.StatusBadRequest))
			return
		}

		cmd, err := ParseCommand(data)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error(), http.StatusBadRequest))
			return
		}

		resp, err := dispatch(r, cmd)
		if err != nil {
			status := statusForError(err)
			writeJSON(w, status, errorResponse(err.Error(), status))
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newSessionID generates a crypto-random id for the session share URL.
func newSessionID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, 8)
	for i := range out {
		out[i] = letters[int(buf[i])%len(letters)]
	}
	return string(out)
}

// qrHandler generates a PNG QR code for the share URL so players can join
// from their phones.
func qrHandler(sessionID string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at .../qr; strip the suffix to get the game URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path + "?session=" + sessionID

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func serveGamePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(gameHTML))
	}
}

// registerBuzzGame sets up routes so that:
//   - $path            → HTML client
//   - $path/ws         → WebSocket (join handshake + event stream)
//   - $path/buzz       → POST buzz command
//   - $path/answer     → POST answer command
//   - $path/qr         → PNG QR code for the game URL
func registerBuzzGame(cfg *Config, path string, mux *httprouter.Router, co *Coordinator) {
	sessionID := newSessionID()
	slog.Info("game session ready", "session", sessionID, "minPlayers", cfg.minPlayers, "maxPlayers", cfg.maxPlayers)

	mux.GET(cfg.prefix+path, serveGamePage(cfg))

	mux.GET(cfg.prefix+path+"/ws", serveWS(co))

	mux.POST(cfg.prefix+path+"/buzz", handleCommand(func(r *http.Request, cmd any) (any, error) {
		buzz, ok := cmd.(BuzzCommand)
		if !ok {
			return nil, errUnknownCommand
		}
		return co.Buzz(buzz.PlayerName)
	}))

	mux.POST(cfg.prefix+path+"/answer", handleCommand(func(r *http.Request, cmd any) (any, error) {
		answer, ok := cmd.(AnswerCommand)
		if !ok {
			return nil, errUnknownCommand
		}
		return co.Answer(r.Context(), answer.PlayerName, answer.QuestionNumber, answer.AnswerNumber)
	}))

	mux.GET(cfg.prefix+path+"/qr", qrHandler(sessionID))
}

// Minimal browser client for quick testing.
const gameHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Buzz Game</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 2rem; max-width: 40rem; }
  #status { margin-bottom: 1rem; font-size: 0.9rem; color: #555; }
  #question { font-size: 1.2rem; margin: 1rem 0; }
  button { font-size: 1rem; padding: 0.5rem 1rem; margin: 0.25rem; }
  #buzz { background: #c00; color: #fff; border: none; border-radius: 50%;
          width: 6rem; height: 6rem; font-size: 1.2rem; }
  #buzz:disabled { background: #999; }
  #scores li { padding: 0.15rem 0; }
</style>
</head>
<body>
<h1>Buzz Game</h1>
<div id="status">Connecting…</div>
<div id="question"></div>
<div id="answers"></div>
<button id="buzz" disabled>BUZZ</button>
<ul id="scores"></ul>

<script>
(function() {
  const statusEl = document.getElementById('status');
  const questionEl = document.getElementById('question');
  const answersEl = document.getElementById('answers');
  const buzzEl = document.getElementById('buzz');
  const scoresEl = document.getElementById('scores');

  let name = '';
  let question = null;
  const scores = {};

  const proto = (location.protocol === 'https:') ? 'wss://' : 'ws://';
  const base = location.pathname.replace(/\/$/, '');
  const ws = new WebSocket(proto + location.host + base + '/ws');

  function renderScores() {
    scoresEl.innerHTML = '';
    Object.keys(scores).sort().forEach(function(player) {
      const li = document.createElement('li');
      li.textContent = player + ': ' + scores[player];
      scoresEl.appendChild(li);
    });
  }

  function renderQuestion(q) {
    question = q;
    questionEl.textContent = '#' + q.number + ' (' + q.points + ' pts): ' + q.label;
    answersEl.innerHTML = '';
    q.answers.forEach(function(a) {
      const btn = document.createElement('button');
      btn.textContent = a.label;
      btn.onclick = function() {
        fetch(base + '/answer', {
          method: 'POST',
          headers: {'Content-Type': 'application/json'},
          body: JSON.stringify({playerName: name, questionNumber: q.number, answerNumber: a.number})
        });
      };
      answersEl.appendChild(btn);
    });
  }

  buzzEl.onclick = function() {
    fetch(base + '/buzz', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({playerName: name})
    });
  };

  ws.onopen = function() {
    name = prompt('Enter your name:') || '';
    if (!name) { statusEl.textContent = 'A name is required.'; ws.close(); return; }
    ws.send(JSON.stringify({name: name}));
    statusEl.textContent = 'Waiting for players…';
  };

  ws.onmessage = function(event) {
    const msg = JSON.parse(event.data);

    switch (msg.type) {
    case 'GAME_START':
      statusEl.textContent = 'Game on!';
      break;
    case 'GAME_END':
      statusEl.textContent = 'Game over.';
      questionEl.textContent = '';
      answersEl.innerHTML = '';
      buzzEl.disabled = true;
      break;
    case 'CAN_BUZZ':
      buzzEl.disabled = !msg.canBuzz;
      break;
    case 'NEW_QUESTION':
      renderQuestion(msg.message);
      break;
    case 'NEW_BUZZ':
      statusEl.textContent = msg.message.author + ' buzzed!';
      break;
    case 'NEW_ANSWER':
      statusEl.textContent = msg.message.playerName + ' answered "' +
        msg.message.answer.label + '": ' + (msg.message.answer.good ? 'correct!' : 'wrong.');
      break;
    case 'NEW_PLAYER_SCORE':
      scores[msg.message.playerName] = msg.message.score;
      renderScores();
      break;
    case 'ERROR':
      statusEl.textContent = msg.message.message || msg.message;
      break;
    }
  };

  ws.onclose = function() {
    statusEl.textContent = 'Disconnected.';
  };
})();
</script>
</body>
</html>
`
