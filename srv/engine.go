package srv

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WordChecker is the external collaborator a Deathmatch consults to
// decide whether a word exists. Implemented by internal/dictionary.Client.
type WordChecker interface {
	Check(ctx context.Context, word string) (correct bool, definitions []string, err error)
}

// orderedPlayers mimics a circular singly-linked list: the player order
// is randomized once at construction and `next` advances around it,
// skipping eliminated players.
type orderedPlayers struct {
	players      []*GamePlayer
	currentIdx   int
	currentPlace int
}

func newOrderedPlayers(players []*GamePlayer) *orderedPlayers {
	shuffled := make([]*GamePlayer, len(players))
	copy(shuffled, players)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	idx := -1
	if len(shuffled) > 0 {
		idx = 0
	}
	return &orderedPlayers{players: shuffled, currentIdx: idx, currentPlace: len(shuffled)}
}

func (o *orderedPlayers) current() *GamePlayer { return o.players[o.currentIdx] }

// next advances to the next in-game player in circular order.
func (o *orderedPlayers) next() error {
	if len(o.players) == 0 {
		return fmt.Errorf("next player cannot be iterated for an empty list")
	}
	start := o.currentIdx
	for {
		o.currentIdx = (o.currentIdx + 1) % len(o.players)
		if len(o.players) != 1 && o.currentIdx == start {
			return fmt.Errorf("all but one player are out of the game")
		}
		if o.current().InGame {
			return nil
		}
		if o.allEliminated() {
			return fmt.Errorf("all players are out of the game")
		}
	}
}

func (o *orderedPlayers) allEliminated() bool {
	for _, p := range o.players {
		if p.InGame {
			return false
		}
	}
	return true
}

// removeCurrent eliminates the current player and assigns their final
// place, descending from the player count.
func (o *orderedPlayers) removeCurrent() {
	o.current().InGame = false
	o.current().Place = o.currentPlace
	o.currentPlace--
}

func (o *orderedPlayers) inGameCount() int {
	n := 0
	for _, p := range o.players {
		if p.InGame {
			n++
		}
	}
	return n
}

// Deathmatch is the sole supported game mode: players, in a randomized
// circular order and under a hard per-turn deadline, submit words that
// must chain off the previous accepted word, exist in the dictionary, and
// not repeat; falling to non-positive score eliminates a player.
type Deathmatch struct {
	// ID, RoomID, and Rules are set once in NewDeathmatch and never
	// mutated again, so they're safe to read without mu (srv/gameloop.go
	// and srv/router.go do so directly). Every other field is mutated by
	// the per-room game-loop goroutine on each turn while the
	// per-connection read loop concurrently calls CurrentPlayerID, so mu
	// guards State, players, turns, current, words, and events.
	ID     int
	RoomID int
	Rules  DeathmatchRules

	mu    sync.Mutex
	State GameStateEnum

	players *orderedPlayers
	turns   []Turn
	current *Turn
	words   map[string]bool
	events  []GameEvent

	dict WordChecker
}

// NewDeathmatch constructs a game in the Creating state for the given
// room and player set.
func NewDeathmatch(id, roomID int, players []*Player, rules DeathmatchRules, dict WordChecker) *Deathmatch {
	gamePlayers := make([]*GamePlayer, len(players))
	for i, p := range players {
		gamePlayers[i] = &GamePlayer{ID: p.ID, Name: p.Name, Score: rules.StartScore, InGame: true}
	}
	return &Deathmatch{
		ID:      id,
		RoomID:  roomID,
		Rules:   rules,
		State:   GameCreating,
		players: newOrderedPlayers(gamePlayers),
		words:   make(map[string]bool),
		dict:    dict,
	}
}

func (g *Deathmatch) transitionErr(op string) error {
	return codedErrorf(ErrIllegalState, "%s cannot be invoked in the %s game state", op, g.State)
}

// Start moves Creating → Started.
func (g *Deathmatch) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State != GameCreating {
		return g.transitionErr("start")
	}
	g.State = GameStarted
	return nil
}

// Wait moves the game into Waiting, broadcast between turns.
func (g *Deathmatch) Wait() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.State = GameWaiting
	return nil
}

// StartTurn moves {Creating,Waiting} → StartedTurn, advancing to the next
// player (except on the very first turn) and opening a new Turn record.
func (g *Deathmatch) StartTurn() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State != GameCreating && g.State != GameWaiting {
		return g.transitionErr("start_turn")
	}
	g.State = GameStartedTurn
	g.events = nil

	if len(g.turns) > 0 {
		if err := g.players.next(); err != nil {
			return err
		}
	}
	g.current = &Turn{PlayerID: g.players.current().ID, StartedOn: time.Now()}
	return nil
}

// TimeLeftInTurn reports how much of round_time remains for the current
// turn, read at the moment of the call.
func (g *Deathmatch) TimeLeftInTurn() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	elapsed := time.Since(g.current.StartedOn)
	return time.Duration(g.Rules.RoundTime)*time.Second - elapsed
}

// EndTurnInTime seals the current turn with a submitted word, validates
// it, and applies the score/elimination consequences.
func (g *Deathmatch) EndTurnInTime(ctx context.Context, word string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State != GameStartedTurn {
		return g.transitionErr("end_turn_in_time")
	}
	g.State = GameEndedTurn

	now := time.Now()
	g.current.EndedOn = &now
	w, info := g.validateWord(ctx, word)
	g.current.Word = &w
	g.current.Info = info

	g.evaluateTurn()
	g.turns = append(g.turns, *g.current)
	return nil
}

// EndTurnTimedOut seals the current turn with no submission.
func (g *Deathmatch) EndTurnTimedOut() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State != GameStartedTurn {
		return g.transitionErr("end_turn_timed_out")
	}
	g.State = GameEndedTurn

	now := time.Now()
	g.current.EndedOn = &now
	g.current.Word = nil
	g.current.Info = "Turn time exceeded"

	g.evaluateTurn()
	g.turns = append(g.turns, *g.current)
	return nil
}

// End moves EndedTurn → Ended, emitting the finishing events.
func (g *Deathmatch) End() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State != GameEndedTurn {
		return g.transitionErr("end")
	}
	g.State = GameEnded
	g.events = nil

	if len(g.players.players) == 1 {
		g.events = append(g.events, GameEvent{Kind: EventGameFinished, ChainLength: len(g.words)})
	} else {
		for _, p := range g.players.players {
			if p.InGame {
				g.events = append(g.events, GameEvent{Kind: EventPlayerWon, PlayerName: p.Name})
				break
			}
		}
		g.events = append(g.events, GameEvent{Kind: EventGameFinished, ChainLength: len(g.words)})
	}
	return nil
}

// IsFinished reports whether the game is over: in a multiplayer game,
// once exactly one player remains in_game; in a solo game, once the sole
// player has been eliminated (a surviving solo player keeps playing).
func (g *Deathmatch) IsFinished() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.players.players) == 1 && !g.players.current().InGame {
		return true
	}
	if len(g.players.players) > 1 && g.players.inGameCount() == 1 {
		return true
	}
	return false
}

// Events returns the events produced by the most recent turn evaluation
// or End call; callers must treat this as read-once (the engine clears it
// on the next StartTurn/End).
func (g *Deathmatch) Events() []GameEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.events
}

// CurrentPlayerID returns the id of the player whose turn it is.
func (g *Deathmatch) CurrentPlayerID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.players.current().ID
}

// CurrentTurnOut renders the current turn for broadcast.
func (g *Deathmatch) CurrentTurnOut() TurnOut {
	g.mu.Lock()
	defer g.mu.Unlock()
	return TurnOut{
		PlayerIdx: g.players.currentIdx,
		PlayerID:  g.current.PlayerID.String(),
		StartedOn: g.current.StartedOn,
		EndedOn:   g.current.EndedOn,
		Word:      g.current.Word,
		Info:      g.current.Info,
	}
}

// PlayersOut renders every player for broadcast.
func (g *Deathmatch) PlayersOut() []GamePlayerOut {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GamePlayerOut, len(g.players.players))
	for i, p := range g.players.players {
		out[i] = GamePlayerOut{Name: p.Name, Score: p.Score, Mistakes: p.Mistakes, InGame: p.InGame, Place: p.Place}
	}
	return out
}

// ChainLength returns the number of distinct accepted words so far.
func (g *Deathmatch) ChainLength() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.words)
}

// Turns returns the sealed turns recorded so far.
func (g *Deathmatch) Turns() []Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turns
}

// evaluateTurn assumes the caller already holds g.mu.
func (g *Deathmatch) evaluateTurn() {
	cur := g.players.current()
	if g.current.Word == nil || !g.current.Word.IsCorrect {
		cur.Mistakes++
		cur.Score += g.Rules.Penalty
	} else {
		cur.Score += g.Rules.Reward
	}

	if cur.Score <= 0 {
		g.players.removeCurrent()
		if len(g.players.players) != 1 {
			g.events = append(g.events, GameEvent{Kind: EventPlayerLost, PlayerName: cur.Name})
		}
	}
}

// validateWord assumes the caller already holds g.mu; it calls out to
// g.dict.Check while the lock is held, matching the teacher's GameEngine
// which does the same around its dictionary lookups.
func (g *Deathmatch) validateWord(ctx context.Context, word string) (Word, string) {
	word = lowercaseWord(word)
	if !g.isCompatibleWithPreviousWord(word) {
		return Word{Content: word, IsCorrect: false}, "Word does not start with the last letter of the previous word"
	}

	correct, defs, err := g.dict.Check(ctx, word)
	if err != nil {
		// DictionaryUnavailable: current policy treats the word as
		// incorrect for this turn (spec §7, open question resolved in
		// SPEC_FULL.md).
		slog.Warn("dictionary lookup failed, scoring word as incorrect", "game_id", g.ID, "word", word, "err", err)
		return Word{Content: word, IsCorrect: false}, "Word does not exist"
	}
	if !correct {
		return Word{Content: word, IsCorrect: false}, "Word does not exist"
	}

	if g.words[word] {
		return Word{Content: word, IsCorrect: false}, "Word has already been used"
	}

	g.words[word] = true
	return Word{Content: word, IsCorrect: true, Definitions: defs}, "Word is correct"
}

// isCompatibleWithPreviousWord checks that word starts with the last
// letter of the most recent accepted word, scanning backward through
// turns (a turn with no accepted word is skipped entirely, it doesn't
// break the chain).
// isCompatibleWithPreviousWord assumes the caller already holds g.mu.
func (g *Deathmatch) isCompatibleWithPreviousWord(word string) bool {
	if len(g.turns) == 0 {
		return true
	}
	for i := len(g.turns) - 1; i >= 0; i-- {
		turn := g.turns[i]
		if turn.Word == nil || !turn.Word.IsCorrect {
			continue
		}
		prev := turn.Word.Content
		return word[0] == prev[len(prev)-1]
	}
	return true
}

func lowercaseWord(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
