package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alpha162/armoured-candles/internal/display"
	"github.com/Alpha162/armoured-candles/internal/metrics"
	"github.com/Alpha162/armoured-candles/internal/netwatch"
	"github.com/Alpha162/armoured-candles/internal/render"
	"github.com/Alpha162/armoured-candles/internal/store"
	"github.com/Alpha162/armoured-candles/internal/ticker"
	"github.com/Alpha162/armoured-candles/pkg/config"
	"github.com/Alpha162/armoured-candles/pkg/models"
)

type nopRadio struct{}

func (nopRadio) Connect(ctx context.Context, ssid, password string) error { return nil }
func (nopRadio) Connected(ctx context.Context) (bool, error)              { return true, nil }
func (nopRadio) Reset(ctx context.Context) error                          { return nil }
func (nopRadio) StartAccessPoint(ctx context.Context, ssid, password string) error {
	return nil
}
func (nopRadio) StopAccessPoint(ctx context.Context) error { return nil }

type fixture struct {
	server   *Server
	store    *store.Store
	display  *display.Display
	orch     *ticker.Orchestrator
	restarts chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{}
	cfg.Server.CORSEnabled = false
	cfg.Update.StagingPath = filepath.Join(t.TempDir(), "update.bin")
	cfg.Update.MaxImageMB = 1

	st := store.New(store.NewMemoryKV(), log)
	disp := display.New(display.NewSimDriver("", log), display.NewPolicy(10, 0.35), log)

	netCfg := config.NetworkConfig{
		GhostThreshold:  3,
		AccessPointSSID: "setup",
		AccessPointAddr: "192.168.4.1",
	}
	watcher := netwatch.NewWatcher(nopRadio{}, netCfg, clock.NewMock(), log)
	orch := ticker.New(nil, disp, watcher, metrics.New(), clock.NewMock(), 160, 80, log)
	orch.ApplySettings(models.DefaultSettings())

	f := &fixture{
		store:    st,
		display:  disp,
		orch:     orch,
		restarts: make(chan struct{}, 1),
	}
	f.server = NewServer(cfg, log, orch, st, disp, metrics.New(), func() error {
		f.restarts <- struct{}{}
		return nil
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "armoured-candles")
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap ticker.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Charts, 1)
	assert.False(t, snap.UpdateInProgress)
}

func TestConfigApply(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"active_charts": 2, "refresh_minutes": 15}`)
	rec := f.do(t, "POST", "/api/config", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	applied := f.orch.Settings()
	assert.Equal(t, 2, applied.ActiveCharts)
	assert.Equal(t, 15, applied.RefreshMinutes)

	persisted, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, applied, persisted)
}

func TestConfigRejectsInvalidField(t *testing.T) {
	f := newFixture(t)
	before := f.orch.Settings()

	rec := f.do(t, "POST", "/api/config", []byte(`{"active_charts": 9}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_chart_count", body.Error.Code)
	assert.Equal(t, "active_charts", body.Error.Field)

	assert.Equal(t, before, f.orch.Settings(), "rejected config must leave settings untouched")
}

func TestConfigRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/config", []byte(`{nope`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "malformed_json", body.Error.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/refresh", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRestartEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/restart", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-f.restarts:
	case <-time.After(time.Second):
		t.Fatal("restart hook never called")
	}
}

func TestDisplayEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/display", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no frame pushed yet")

	_, err := f.display.Push(render.NewFramebuffer(160, 80), true)
	require.NoError(t, err)

	rec = f.do(t, "GET", "/api/display", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/bmp", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{'B', 'M'}, rec.Body.Bytes()[:2])
}

func TestBasicAuthOnMutatingEndpoints(t *testing.T) {
	f := newFixture(t)
	settings := models.DefaultSettings()
	settings.UIUser = "admin"
	settings.UIPass = "secret"
	f.orch.ApplySettings(settings)

	// read endpoints stay open
	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/api/status", nil).Code)

	rec := f.do(t, "POST", "/api/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("POST", "/api/refresh", nil)
	req.SetBasicAuth("admin", "secret")
	ok := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(ok, req)
	assert.Equal(t, http.StatusAccepted, ok.Code)

	req = httptest.NewRequest("POST", "/api/refresh", nil)
	req.SetBasicAuth("admin", "wrong")
	bad := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestUpdateFlow(t *testing.T) {
	f := newFixture(t)
	image := bytes.Repeat([]byte{0xA5}, 4096)
	digest := sha256.Sum256(image)

	arm := fmt.Sprintf(`{"size": %d, "sha256": %q}`, len(image), hex.EncodeToString(digest[:]))
	rec := f.do(t, "POST", "/api/update/arm", []byte(arm))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, "POST", "/api/update", image)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	staged, err := os.ReadFile(f.server.cfg.Update.StagingPath)
	require.NoError(t, err)
	assert.Equal(t, image, staged)

	status := f.orch.Status()
	assert.False(t, status.UpdateInProgress)
	assert.False(t, status.UpdateFailed)
}

func TestUpdateWithoutArmRejected(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/api/update", []byte("junk"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateDigestMismatchAborts(t *testing.T) {
	f := newFixture(t)
	image := bytes.Repeat([]byte{0xA5}, 2048)
	wrong := sha256.Sum256([]byte("something else"))

	arm := fmt.Sprintf(`{"size": %d, "sha256": %q}`, len(image), hex.EncodeToString(wrong[:]))
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/update/arm", []byte(arm)).Code)

	rec := f.do(t, "POST", "/api/update", image)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "update_failed", body.Error.Code)

	_, err := os.Stat(f.server.cfg.Update.StagingPath)
	assert.True(t, os.IsNotExist(err), "partial image must be removed")
	assert.True(t, f.orch.Status().UpdateFailed)

	// the device stays reachable and a second armed attempt succeeds
	good := sha256.Sum256(image)
	arm = fmt.Sprintf(`{"size": %d, "sha256": %q}`, len(image), hex.EncodeToString(good[:]))
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/update/arm", []byte(arm)).Code)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/api/update", image).Code)
	assert.False(t, f.orch.Status().UpdateFailed)
}

func TestArmValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/update/arm", []byte(`{"size": 0, "sha256": "ab"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/api/update/arm", []byte(`{"size": 100, "sha256": "zz"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// over the configured image cap
	rec = f.do(t, "POST", "/api/update/arm",
		[]byte(fmt.Sprintf(`{"size": %d, "sha256": %q}`, 2*1024*1024, strings.Repeat("a", 64))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
