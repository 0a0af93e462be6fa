package srv

import (
	"context"
	"encoding/json"
	"log/slog"
)

// inboundEnvelope peeks at the type discriminator before fully decoding a
// variant-specific payload.
type inboundEnvelope struct {
	Payload struct {
		Type string `json:"type"`
	} `json:"payload"`
}

// dispatchInbound decodes one message from player's channel and routes
// it. Decode or handler errors are logged and never terminate the read
// loop for that connection (spec §4.8 failure isolation); only an
// explicit disconnect (handled by the caller, not here) ends the loop.
func (s *Server) dispatchInbound(ctx context.Context, player *Player, room *Room, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("malformed inbound message", "player_id", player.ID, "err", err)
		return
	}

	switch env.Payload.Type {
	case "chat":
		s.handleChat(ctx, player, room, raw)
	case "word_input":
		s.handleWordInput(player, room, raw)
	default:
		// other types are ignored per spec §4.8
	}
}

func (s *Server) handleChat(ctx context.Context, player *Player, room *Room, raw []byte) {
	var msg struct {
		Payload ChatMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("malformed chat message", "player_id", player.ID, "err", err)
		return
	}
	content := msg.Payload.Content
	if content == "" {
		return
	}

	id, createdOn, err := s.store.InsertMessage(ctx, room.ID, player.ID, content)
	if err != nil {
		slog.Error("persist chat message failed", "err", err)
		return
	}

	s.conns.BroadcastChat(room.ID, ChatMessage{
		ID: id, CreatedOn: &createdOn, Content: content, PlayerName: player.Name, RoomID: room.ID,
	})
}

// handleWordInput drops the message silently if the room has no active
// game, the game id doesn't match, or the submitter isn't the player
// whose turn it currently is — defensive against a malicious or stale
// client (spec §4.8).
func (s *Server) handleWordInput(player *Player, room *Room, raw []byte) {
	var msg struct {
		Payload GameInputMsg `json:"payload"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("malformed word_input message", "player_id", player.ID, "err", err)
		return
	}

	game := s.games.Get(msg.Payload.GameID)
	if game == nil || game.RoomID != room.ID {
		return
	}
	room.mu.Lock()
	gameID := room.GameID
	room.mu.Unlock()
	if gameID != msg.Payload.GameID {
		return
	}
	if game.CurrentPlayerID() != player.ID {
		return
	}

	buf := s.buffers.get(room.ID)
	if buf == nil {
		return
	}
	buf.Put(player.ID, msg.Payload.Word)
}
