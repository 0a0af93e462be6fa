package srv

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// LoopDelays are the inter-phase sleeps the orchestrator observes;
// sourced from GAME_START_DELAY / TURN_START_DELAY / MAX_TURN_TIME_DEVIATION.
type LoopDelays struct {
	GameStart          time.Duration
	TurnStart          time.Duration
	MaxTurnTimeDeviation time.Duration
}

// runGameLoop drives one Deathmatch through its phases: StartGame, Wait,
// then a (StartTurn, await-input-or-timeout, EndTurn, Wait) cycle until
// finished, then EndGame. It is spawned detached, one per started room,
// and is cancellable via ctx (spec §4.4/§9: a cancelled loop leaves the
// game unpersisted).
func (s *Server) runGameLoop(ctx context.Context, room *Room, game *Deathmatch, buf *WordInputBuffer) {
	defer s.games.Remove(game.ID)

	if err := game.Start(); err != nil {
		slog.Error("game start failed", "game_id", game.ID, "err", err)
		return
	}
	s.conns.BroadcastGameState(room.ID, GameStateMsg{
		State:  GameStarted,
		GameID: game.ID,
		Rules:  &game.Rules,
	})

	if err := sleepCtx(ctx, s.delays.GameStart); err != nil {
		return
	}
	_ = game.Wait()
	s.conns.BroadcastGameState(room.ID, GameStateMsg{State: GameWaiting})

	for {
		if err := game.StartTurn(); err != nil {
			slog.Error("start_turn failed", "game_id", game.ID, "err", err)
			return
		}
		s.conns.BroadcastGameState(room.ID, GameStateMsg{
			State:       GameStartedTurn,
			CurrentTurn: turnOutPtr(game.CurrentTurnOut()),
		})

		deadline := game.TimeLeftInTurn()
		if deadline < 0 {
			deadline = 0
		}
		turnStarted := time.Now()
		turnCtx, cancel := context.WithTimeout(ctx, deadline)
		playerID, word, ok := buf.Get(turnCtx)
		cancel()

		if ctx.Err() != nil {
			return // process/room shutdown: leave unpersisted
		}

		if ok && playerID == game.CurrentPlayerID() {
			if err := game.EndTurnInTime(ctx, word); err != nil {
				slog.Error("end_turn_in_time failed", "game_id", game.ID, "err", err)
				return
			}
		} else {
			if overshoot := time.Since(turnStarted) - deadline; overshoot > s.delays.MaxTurnTimeDeviation {
				slog.Warn("turn timeout exceeded max deviation", "game_id", game.ID, "overshoot", overshoot)
			}
			if err := game.EndTurnTimedOut(); err != nil {
				slog.Error("end_turn_timed_out failed", "game_id", game.ID, "err", err)
				return
			}
		}
		buf.Drain()

		s.conns.BroadcastGameState(room.ID, GameStateMsg{
			State:       GameEndedTurn,
			CurrentTurn: turnOutPtr(game.CurrentTurnOut()),
			Players:     game.PlayersOut(),
		})
		s.broadcastGameEvents(room, game)

		if game.IsFinished() {
			break
		}

		_ = game.Wait()
		s.conns.BroadcastGameState(room.ID, GameStateMsg{State: GameWaiting})
		if err := sleepCtx(ctx, s.delays.TurnStart); err != nil {
			return
		}
	}

	if err := game.End(); err != nil {
		slog.Error("end failed", "game_id", game.ID, "err", err)
		return
	}
	s.broadcastGameEvents(room, game)
	s.conns.BroadcastGameState(room.ID, GameStateMsg{State: GameEnded})

	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.FinishGame(persistCtx, game.ID, game.Turns()); err != nil {
		slog.Error("persist finished game failed", "game_id", game.ID, "err", err)
	}

	s.reopenRoomAfterGame(room)
}

// broadcastGameEvents translates pending GameEvents into system chat
// messages, sent after the state broadcast for that turn (spec §5
// ordering guarantee).
func (s *Server) broadcastGameEvents(room *Room, game *Deathmatch) {
	for _, ev := range game.Events() {
		var content string
		switch ev.Kind {
		case EventPlayerLost:
			content = ev.PlayerName + " has been eliminated"
		case EventPlayerWon:
			content = ev.PlayerName + " wins the game"
		case EventGameFinished:
			content = "game finished, chain length " + strconv.Itoa(ev.ChainLength)
		default:
			continue
		}
		s.systemChat(room.ID, content)
	}
}

func turnOutPtr(t TurnOut) *TurnOut { return &t }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
