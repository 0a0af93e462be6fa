package srv

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// RunReaper periodically expires empty idle rooms and reconciles rooms
// that exist in persistence but not in the pool (assumed lost to a
// crash). Scheduling targets fixed wall-clock boundaries relative to
// startedOn and interval rather than a free-running ticker, so the
// schedule never drifts; if the process falls behind (a long GC pause, a
// blocked pass) it catches up by resuming at the next boundary instead of
// firing a backlog of missed ticks. A pass only runs if it wakes within
// one second of its target boundary.
func (s *Server) RunReaper(ctx context.Context, interval, deletionDelay time.Duration) {
	startedOn := time.Now()
	for {
		boundary := nextBoundary(startedOn, interval)
		if err := sleepCtx(ctx, time.Until(boundary)); err != nil {
			return
		}
		if time.Since(boundary) <= time.Second {
			s.reapPass(ctx, deletionDelay)
		}
	}
}

func nextBoundary(startedOn time.Time, interval time.Duration) time.Time {
	elapsed := time.Since(startedOn)
	if interval <= 0 {
		return time.Now()
	}
	periods := elapsed/interval + 1
	return startedOn.Add(time.Duration(periods) * interval)
}

func (s *Server) reapPass(ctx context.Context, deletionDelay time.Duration) {
	missing, err := s.store.RoomsMissingEnd(ctx)
	if err != nil {
		slog.Error("reaper: list rooms missing end failed", "err", err)
		return
	}

	removed := map[string]*RoomOut{}
	for _, roomID := range missing {
		room, lookupErr := s.pool.GetRoomByID(roomID)
		if lookupErr != nil {
			// not present in the pool: assumed lost to a crash
			if err := s.store.EndRoom(ctx, roomID); err != nil {
				slog.Error("reaper: mark crashed room ended failed", "room_id", roomID, "err", err)
			}
			removed[strconv.Itoa(roomID)] = nil
			continue
		}

		room.mu.Lock()
		empty := len(room.Members) == 0
		idleSince := room.LastActiveOn
		room.mu.Unlock()

		if empty && time.Since(idleSince) > deletionDelay {
			if err := s.pool.RemoveRoom(roomID); err != nil {
				continue
			}
			if err := s.store.EndRoom(ctx, roomID); err != nil {
				slog.Error("reaper: mark idle room ended failed", "room_id", roomID, "err", err)
			}
			removed[strconv.Itoa(roomID)] = nil
		}
	}

	if len(removed) > 0 {
		s.conns.BroadcastLobbyState(LobbyStateMsg{Rooms: removed})
	}
}
