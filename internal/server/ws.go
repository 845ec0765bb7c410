package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// wsPollInterval is how often the push loop samples the session state while
// a transcription is in flight.
const wsPollInterval = 250 * time.Millisecond

// wsCommand is a text frame from the client. Binary frames carry raw audio
// chunks; a command with op "end" closes the current blob and submits it.
type wsCommand struct {
	Op       string `json:"op"`
	MimeType string `json:"mime_type,omitempty"`
	Language string `json:"language,omitempty"`
}

// wsEvent is a server push frame.
type wsEvent struct {
	Event   string `json:"event"`
	Token   uint64 `json:"token,omitempty"`
	Session any    `json:"session,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleWS accepts a WebSocket connection that streams audio. The client
// sends binary frames with audio chunks, then a text frame {"op":"end"}.
// The server assembles the chunks into one blob, starts transcription, and
// pushes "transcribing", then "transcript" or "error" events. Multiple
// upload cycles may run over one connection; {"op":"abort"} discards the
// buffered chunks.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxAudioBytes)

	ctx := r.Context()
	var buf bytes.Buffer

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			// Normal closure or client gone; nothing to report.
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		switch msgType {
		case websocket.MessageBinary:
			if buf.Len()+len(data) > maxAudioBytes {
				s.wsSend(ctx, conn, wsEvent{Event: "error", Message: "audio exceeds size limit"})
				buf.Reset()
				continue
			}
			buf.Write(data)

		case websocket.MessageText:
			var cmd wsCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				s.wsSend(ctx, conn, wsEvent{Event: "error", Message: "invalid command frame"})
				continue
			}
			switch cmd.Op {
			case "end":
				if buf.Len() == 0 {
					s.wsSend(ctx, conn, wsEvent{Event: "error", Message: "no audio received"})
					continue
				}
				audio := bytes.Clone(buf.Bytes())
				buf.Reset()
				s.wsSubmit(ctx, conn, audio, cmd)
			case "abort":
				buf.Reset()
			default:
				s.wsSend(ctx, conn, wsEvent{Event: "error", Message: "unknown op: " + cmd.Op})
			}
		}
	}
}

// wsSubmit hands the assembled blob to the controller and pushes state
// events until the transcription settles or the connection goes away.
func (s *Server) wsSubmit(ctx context.Context, conn *websocket.Conn, audio []byte, cmd wsCommand) {
	mimeType := cmd.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	token, err := s.controller.AcceptAudio(ctx, audio, mimeType, cmd.Language)
	if err != nil {
		s.logger.Error("audio acceptance failed", "error", err)
		s.wsSend(ctx, conn, wsEvent{Event: "error", Message: "failed to accept audio"})
		return
	}
	s.wsSend(ctx, conn, wsEvent{Event: "transcribing", Token: token})

	ticker := time.NewTicker(wsPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state := s.controller.Snapshot()
		if state.Token != token {
			// A newer upload or a clear superseded this one.
			s.wsSend(ctx, conn, wsEvent{Event: "superseded", Token: token})
			return
		}
		if state.Transcribing {
			continue
		}
		if state.LastError != "" {
			s.wsSend(ctx, conn, wsEvent{Event: "error", Token: token, Message: state.LastError})
			return
		}
		s.wsSend(ctx, conn, wsEvent{Event: "transcript", Token: token, Session: state})
		return
	}
}

func (s *Server) wsSend(ctx context.Context, conn *websocket.Conn, ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.logger.Debug("websocket write failed", "error", err)
	}
}
