package srv

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// playerIDFromCookie extracts and parses the auth cookie, failing with
// ErrAuthMissing if absent or malformed.
func (s *Server) playerIDFromCookie(r *http.Request) (uuid.UUID, error) {
	c, err := r.Cookie(s.cookieName)
	if err != nil || c.Value == "" {
		return uuid.Nil, codedErrorf(ErrAuthMissing, "missing auth cookie")
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return uuid.Nil, codedErrorf(ErrAuthMissing, "malformed auth cookie")
	}
	return id, nil
}

// setAuthCookie refreshes the session cookie on every authenticated
// response, per spec §6.
func (s *Server) setAuthCookie(w http.ResponseWriter, playerID uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    playerID.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(s.cookieMaxAge.Seconds()),
	})
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Location map[string][]string `json:"location,omitempty"`
	Message  string              `json:"message,omitempty"`
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if kindOf(err) == ErrValidation {
		writeJSON(w, status, apiError{Location: map[string][]string{"_": {err.Error()}}})
		return
	}
	writeJSON(w, status, apiError{Message: err.Error()})
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*Player, bool) {
	id, err := s.playerIDFromCookie(r)
	if err != nil {
		s.clearAuthCookie(w)
		writeErr(w, err)
		return nil, false
	}
	player, err := s.pool.GetPlayer(id)
	if err != nil {
		player, err = s.store.GetPlayer(r.Context(), id)
		if err != nil {
			s.clearAuthCookie(w)
			writeErr(w, codedErrorf(ErrAuthMissing, "unknown player"))
			return nil, false
		}
	}
	s.setAuthCookie(w, player.ID)
	return player, true
}

// HandleMe returns the authenticated caller.
func (s *Server) HandleMe(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, player)
}

// HandleCreatePlayer registers a new player account.
func (s *Server) HandleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, codedErrorf(ErrValidation, "malformed body"))
		return
	}
	if body.Name == "" || len(body.Name) > maxPlayerNameLen {
		writeErr(w, codedErrorf(ErrValidation, "name must be 1-%d characters", maxPlayerNameLen))
		return
	}

	player, err := s.store.CreatePlayer(r.Context(), body.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.setAuthCookie(w, player.ID)
	writeJSON(w, http.StatusCreated, player)
}

// HandleLogin sets the auth cookie for an existing player UUID.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, codedErrorf(ErrValidation, "malformed body"))
		return
	}
	id, err := uuid.Parse(body.ID)
	if err != nil {
		writeErr(w, codedErrorf(ErrAuthMissing, "malformed id"))
		return
	}
	player, err := s.store.GetPlayer(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusForbidden, apiError{Message: "unknown player"})
		return
	}
	s.setAuthCookie(w, player.ID)
	writeJSON(w, http.StatusOK, player)
}

// HandleLogout clears the auth cookie.
func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// HandleStats serves the cached aggregate stats.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Stats(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func roomIDFromPath(r *http.Request) (int, error) {
	idStr := r.PathValue("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, codedErrorf(ErrNotFound, "malformed room id")
	}
	return id, nil
}

// HandleCreateRoom handles POST /rooms.
func (s *Server) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var body struct {
		Name     string          `json:"name"`
		Capacity int             `json:"capacity"`
		Rules    DeathmatchRules `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, codedErrorf(ErrValidation, "malformed body"))
		return
	}
	if body.Rules == (DeathmatchRules{}) {
		body.Rules = DefaultRules()
	}
	room, err := s.CreateRoom(r.Context(), player, body.Name, body.Capacity, body.Rules)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// HandleModifyRoom handles PUT /rooms/{id}.
func (s *Server) HandleModifyRoom(w http.ResponseWriter, r *http.Request) {
	player, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	roomID, err := roomIDFromPath(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	room, err := s.pool.GetRoomByID(roomID)
	if err != nil {
		writeErr(w, err)
		return
	}
	var body struct {
		Capacity int             `json:"capacity"`
		Rules    DeathmatchRules `json:"rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, codedErrorf(ErrValidation, "malformed body"))
		return
	}
	if err := s.ModifyRoom(room, player.ID, body.Capacity, body.Rules); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) withRoomAndPlayer(w http.ResponseWriter, r *http.Request) (*Room, *Player, bool) {
	player, ok := s.authenticate(w, r)
	if !ok {
		return nil, nil, false
	}
	roomID, err := roomIDFromPath(r)
	if err != nil {
		writeErr(w, err)
		return nil, nil, false
	}
	room, err := s.pool.GetRoomByID(roomID)
	if err != nil {
		writeErr(w, err)
		return nil, nil, false
	}
	return room, player, true
}

// HandleJoinRoom handles POST /rooms/{id}/join.
func (s *Server) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	room, player, ok := s.withRoomAndPlayer(w, r)
	if !ok {
		return
	}
	if err := s.JoinRoom(room, player); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleLeaveRoom handles POST /rooms/{id}/leave.
func (s *Server) HandleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	room, player, ok := s.withRoomAndPlayer(w, r)
	if !ok {
		return
	}
	if err := s.LeaveRoom(room, player); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleToggleStatus handles POST /rooms/{id}/status.
func (s *Server) HandleToggleStatus(w http.ResponseWriter, r *http.Request) {
	room, player, ok := s.withRoomAndPlayer(w, r)
	if !ok {
		return
	}
	if err := s.ToggleRoomStatus(room, player.ID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleReady handles POST /rooms/{id}/ready.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	room, player, ok := s.withRoomAndPlayer(w, r)
	if !ok {
		return
	}
	if err := s.ToggleReady(room, player.ID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleReturn handles POST /rooms/{id}/return.
func (s *Server) HandleReturn(w http.ResponseWriter, r *http.Request) {
	room, player, ok := s.withRoomAndPlayer(w, r)
	if !ok {
		return
	}
	if err := s.ReturnFromGame(room, player.ID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleKick handles POST /rooms/{id}/players/{name}/kick.
func (s *Server) HandleKick(w http.ResponseWriter, r *http.Request) {
	room, player, ok := s.withRoomAndPlayer(w, r)
	if !ok {
		return
	}
	targetName := r.PathValue("name")
	target, err := s.pool.PlayerByName(targetName)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := s.Kick(room, player.ID, target.ID, target.Name); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleStartGame handles POST /rooms/{id}/start.
func (s *Server) HandleStartGame(w http.ResponseWriter, r *http.Request) {
	room, player, ok := s.withRoomAndPlayer(w, r)
	if !ok {
		return
	}
	if err := s.StartGame(r.Context(), room, player.ID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// corsMiddleware, which also sets the security headers, is grounded on
// Seednode-partybox's web.go: the teacher itself has no public HTTP
// surface broad enough to need either.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return false
	}
	for _, o := range s.corsOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
