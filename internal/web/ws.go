package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"aibook/internal/chat"
	"aibook/internal/logging"
	"aibook/internal/model"
)

const writeWait = 5 * time.Second

// handleLogSocket replays the retained feed lines and then streams new ones
// until the client goes away.
func (s *Server) handleLogSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	feed := s.eng.Feed()
	sub := feed.Subscribe()
	defer feed.Unsubscribe(sub)

	for _, line := range feed.Lines() {
		if writeLogLine(conn, line) != nil {
			return
		}
	}

	// Reader goroutine only notices disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case line, ok := <-sub:
			if !ok {
				return
			}
			if writeLogLine(conn, line) != nil {
				return
			}
		}
	}
}

func writeLogLine(conn *websocket.Conn, line string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(map[string]string{"log": line})
}

type chatClientMsg struct {
	Message string `json:"message"`
}

type chatServerMsg struct {
	History  []model.ChatMessage `json:"history,omitempty"`
	Fragment string              `json:"fragment,omitempty"`
	Done     bool                `json:"done,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// handleChatSocket runs one conversation. On connect the server replays the
// session history; each client message is answered with a sequence of
// fragment frames closed by a done frame.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	characterID := r.PathValue("characterId")
	if _, ok := s.eng.Graph().Character(characterID); !ok {
		http.Error(w, "unknown character", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.writeChat(conn, chatServerMsg{History: s.eng.Chats().History(characterID)}) != nil {
		return
	}

	for {
		var in chatClientMsg
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		if in.Message == "" {
			continue
		}
		stream, err := s.eng.SendChatMessage(r.Context(), characterID, in.Message)
		if err != nil {
			msg := "chat unavailable"
			if errors.Is(err, chat.ErrBusy) {
				msg = "a reply is still streaming"
			}
			if s.writeChat(conn, chatServerMsg{Error: msg, Done: true}) != nil {
				return
			}
			continue
		}
		for {
			frag, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				logging.Error("chat stream failed", map[string]any{"character": characterID, "err": err.Error()})
				break
			}
			if s.writeChat(conn, chatServerMsg{Fragment: frag}) != nil {
				return
			}
		}
		if s.writeChat(conn, chatServerMsg{Done: true}) != nil {
			return
		}
	}
}

func (s *Server) writeChat(conn *websocket.Conn, msg chatServerMsg) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
