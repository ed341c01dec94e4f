package api

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kdimtricp/lanepilot/internal/detection"
	"github.com/kdimtricp/lanepilot/internal/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotBody struct {
	Playback  playback.State  `json:"playback"`
	Detection detection.State `json:"detection"`
	Error     string          `json:"error"`
}

func TestDetectionHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/detections?t=7.5")
	require.Equal(t, http.StatusOK, rec.Code)

	var got detectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, detection.SteerBrake, got.Steering)
	assert.True(t, got.PotholeDetected)
	require.NotNil(t, got.PotholeDistance)
	assert.InDelta(t, 8.3, *got.PotholeDistance, 1e-9)
	assert.Equal(t, "WARNING: HAZARD DETECTED", got.SafetyStatus)
	assert.Equal(t, "0:07", got.Time)

	rec = env.get(t, "/api/detections?t=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, detection.SteerStraight, got.Steering)
	assert.Equal(t, "SAFE", got.SafetyStatus)

	rec = env.get(t, "/api/detections?t=soon")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimelineHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/api/detections/timeline?from=0&to=10&step=0.5")
	require.Equal(t, http.StatusOK, rec.Code)
	var states []detectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	assert.Len(t, states, 21)

	rec = env.get(t, "/api/detections/timeline?from=20")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 11)
	assert.Equal(t, 20.0, states[0].Position)
	assert.Equal(t, 30.0, states[10].Position)

	assert.Equal(t, http.StatusBadRequest, env.get(t, "/api/detections/timeline?step=0").Code)
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/api/detections/timeline?from=5&to=1").Code)
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/api/detections/timeline?to=abc").Code)
}

func TestPlaybackHandler(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, "/api/playback", strings.NewReader(`{"position":3}`), "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, env.upload(t, "drive.mp4", "video/mp4", videoBytes(100)).Code)

	rec = env.post(t, "/api/playback", strings.NewReader(`{"position":7.2,"duration":30,"playing":true}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap snapshotBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, playback.State{Position: 7.2, Duration: 30, Playing: true}, snap.Playback)
	assert.Equal(t, detection.Project(7.2), snap.Detection)

	rec = env.post(t, "/api/playback", strings.NewReader(`{"position":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaybackSocketHandler(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	jar.SetCookies(base, []*http.Cookie{{Name: sessionCookie, Value: env.sid}})

	require.Equal(t, http.StatusOK, env.upload(t, "drive.mp4", "video/mp4", videoBytes(100)).Code)

	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: time.Second}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/playback", nil)
	require.NoError(t, err)
	defer conn.Close()

	positions := []float64{1, 4.5, 7.5, 8.2}
	require.NoError(t, conn.WriteJSON(map[string]any{"duration": 20.0, "playing": true}))
	for _, p := range positions {
		require.NoError(t, conn.WriteJSON(map[string]any{"position": p}))
	}

	var first snapshotBody
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 20.0, first.Playback.Duration)
	assert.True(t, first.Playback.Playing)

	for _, p := range positions {
		var snap snapshotBody
		require.NoError(t, conn.ReadJSON(&snap))
		assert.Equal(t, p, snap.Playback.Position)
		assert.Equal(t, detection.Project(p), snap.Detection)
	}

	// a malformed message is answered, not fatal
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	var bad snapshotBody
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, "invalid playback update", bad.Error)

	require.NoError(t, conn.WriteJSON(map[string]any{"position": 2.0}))
	var after snapshotBody
	require.NoError(t, conn.ReadJSON(&after))
	assert.Equal(t, detection.SteerStraight, after.Detection.Steering)
}

func TestPlaybackSocketHandler_NoMedia(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/playback", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"position": 1.0}))
	var reply snapshotBody
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, playback.ErrNoMedia.Error(), reply.Error)
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/ws/playback", nil)
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://example.com")
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, sameOrigin(req))
}
