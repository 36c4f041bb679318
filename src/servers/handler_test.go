package servers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/store"
	"github.com/streamalert-go/streamalert-go/src/types"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	configs.SetCurrentConfig(configs.NewConfig())

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewServer(st), st
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAddEntityValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/groups/guild-1/entities",
		`{"platform": "twitch", "name": "alice", "added_by": "mod"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "twitch:alice", gjson.Get(rec.Body.String(), "id").String())

	rec = doRequest(s, http.MethodPost, "/api/groups/guild-1/entities",
		`{"platform": "twitch", "name": "alice"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/groups/guild-1/entities",
		`{"platform": "twitch", "name": "../../etc/passwd"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/groups/guild-1/entities",
		`{"platform": "twitch", "name": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEntitiesHidesStaleSnapshot(t *testing.T) {
	s, st := newTestServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	viewers := int64(7)
	live, err := entity.New(types.Twitch, "alice", "")
	require.NoError(t, err)
	live.MarkLive(time.Now(), &entity.Snapshot{
		Title:   "on air",
		URL:     "https://www.twitch.tv/alice",
		Viewers: &viewers,
	})

	offline, err := entity.New(types.Kick, "bob", "")
	require.NoError(t, err)
	offline.MarkLive(time.Now(), &entity.Snapshot{
		Title: "old title",
		URL:   "https://kick.com/bob",
	})
	offline.MarkOffline(&entity.Snapshot{URL: "https://kick.com/bob"})

	require.NoError(t, st.Add(ctx, "guild-1", live))
	require.NoError(t, st.Add(ctx, "guild-1", offline))

	rec := doRequest(s, http.MethodGet, "/api/groups/guild-1/entities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, "on air", gjson.Get(body, "0.snapshot.title").String())
	assert.Equal(t, "https://kick.com/bob", gjson.Get(body, "1.snapshot.url").String())
	assert.False(t, gjson.Get(body, "1.snapshot.title").Exists(),
		"offline entity exposes only the profile url")
}

func TestRemoveEntity(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/groups/guild-1/entities",
		`{"platform": "rumble", "name": "carol"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/groups/guild-1/entities/rumble:carol", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/groups/guild-1/entities/rumble:carol", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGroupSettingsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPut, "/api/groups/guild-1/settings",
		`{"alert_target": "#alerts", "enabled_platforms": ["Twitch", "kick"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/groups/guild-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "#alerts", gjson.Get(body, "settings.alert_target").String())
	assert.Equal(t, "twitch", gjson.Get(body, "settings.enabled_platforms.0").String())
}

func TestGetUnknownGroup(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/groups/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
