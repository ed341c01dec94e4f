package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/kdimtricp/lanepilot/internal/detection"
	"github.com/kdimtricp/lanepilot/internal/playback"
)

type detectionResponse struct {
	detection.State
	Time         string `json:"time"`
	SafetyStatus string `json:"safety_status"`
}

func newDetectionResponse(s detection.State) detectionResponse {
	return detectionResponse{
		State:        s,
		Time:         detection.FormatTime(s.Position),
		SafetyStatus: s.SafetyStatus(),
	}
}

// DetectionHandler projects the detection state for ?t=<seconds>.
func DetectionHandler(w http.ResponseWriter, r *http.Request) {
	t, err := floatParam(r, "t", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newDetectionResponse(detection.Project(t)))
}

// TimelineHandler samples the projection over [from, to] every step
// seconds. to defaults to one full cycle after from.
func TimelineHandler(w http.ResponseWriter, r *http.Request) {
	from, err := floatParam(r, "from", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := floatParam(r, "to", from+detection.CycleSeconds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	step, err := floatParam(r, "step", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	states, err := detection.Timeline(from, to, step)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := make([]detectionResponse, len(states))
	for i, s := range states {
		out[i] = newDetectionResponse(s)
	}
	writeJSON(w, http.StatusOK, out)
}

// PlaybackHandler folds one media element report into the session's player
// and returns the resulting playback and detection state.
func (app *App) PlaybackHandler(w http.ResponseWriter, r *http.Request) {
	var u playback.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid playback update")
		return
	}

	snap, err := app.Players.Player(sessionID(r)).Apply(u)
	if errors.Is(err, playback.ErrNoMedia) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// PlaybackSocketHandler answers every playback update message with the
// state projected from it, in order.
func (app *App) PlaybackSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.Logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(4096)

	player := app.Players.Player(sessionID(r))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				app.Logger.Debug().Err(err).Msg("playback socket closed")
			}
			return
		}

		var reply any
		var u playback.Update
		if err := json.Unmarshal(msg, &u); err != nil {
			reply = errorBody{Error: "invalid playback update"}
		} else if snap, err := player.Apply(u); err != nil {
			reply = errorBody{Error: err.Error()}
		} else {
			reply = snap
		}

		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}
