package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/unrealgt/pkg/gt"
	"github.com/cyclopcam/unrealgt/pkg/scene"
	"github.com/cyclopcam/unrealgt/server/annotationdb"
	"github.com/cyclopcam/unrealgt/server/config"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var (
	colorCup     = scene.RGB(10, 20, 30)
	colorJaMilch = scene.RGB(200, 10, 10)
	colorBanana  = scene.RGB(1, 250, 1)
)

func newTestServer(t *testing.T, withDB bool) *Server {
	cfg := config.DefaultConfig()
	cfg.HistorySize = 3
	cfg.Overlay.SaveDir = t.TempDir()
	if withDB {
		dbCfg := dbh.MakeSqliteConfig(filepath.Join(t.TempDir(), "gt.sqlite"))
		cfg.DB = &dbCfg
	}
	s, err := NewServer(logs.NewTestingLog(t), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s
}

func newTestFrame(t *testing.T, name string) *scene.Frame {
	seg := scene.NewFilledSegmentationImage(200, 100, scene.RGB(255, 255, 255))
	seg.Fill(scene.MakeRect(10, 40, 40, 40), colorCup)
	seg.Fill(scene.MakeRect(100, 40, 40, 40), colorJaMilch)
	seg.Fill(scene.MakeRect(150, 40, 40, 40), colorBanana)
	objects := scene.InstanceColorMap{
		"SM_LinuxCup_1": colorCup,
		"SM_JaMilch_3":  colorJaMilch,
		"SM_Banana_2":   colorBanana,
	}
	regions := []scene.Region{
		{ClusterID: 1, Box: scene.MakeRect(10, 40, 40, 40)},
		{ClusterID: 2, Box: scene.MakeRect(60, 40, 30, 30)},
		{ClusterID: 3, Box: scene.MakeRect(100, 40, 40, 40)},
		{ClusterID: 4, Box: scene.MakeRect(150, 40, 40, 40)},
	}
	frame, err := scene.NewFrame(name, cimg.NewImage(200, 100, cimg.PixelFormatRGB), seg, objects, regions)
	require.NoError(t, err)
	return frame
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", url, nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	s.httpRouter.ServeHTTP(rec, req)
	return rec
}

func TestProcessFrame(t *testing.T) {
	s := newTestServer(t, true)
	require.Nil(t, s.Latest())
	require.Equal(t, http.StatusNotFound, get(t, s, "/api/frames/latest").Code)

	frame := newTestFrame(t, "frame1")
	result, err := s.ProcessFrame(frame)
	require.NoError(t, err)
	require.Equal(t, []string{"LinuxCup", "JaMilch"}, result.Classnames())
	require.Len(t, result.Rejected, 2)

	// Scene holds only the accepted clusters
	clusters := s.Scene.Clusters()
	require.Len(t, clusters, 2)
	require.Equal(t, int64(1), clusters[0].ID)
	require.Equal(t, int64(3), clusters[1].ID)

	// Overlay written to disk
	require.FileExists(t, filepath.Join(s.config.Overlay.SaveDir, "frame1.jpg"))

	// Database
	stored, err := s.DB.FrameAnnotations(frame.ID.String())
	require.NoError(t, err)
	require.Equal(t, result.Accepted, stored)

	r, ok := s.RegionAt(20, 50)
	require.True(t, ok)
	require.Equal(t, "LinuxCup", r.Annotation.Classification.Classname)
	_, ok = s.RegionAt(70, 50)
	require.False(t, ok)
}

func TestHistory(t *testing.T) {
	s := newTestServer(t, false)
	for i := 0; i < 6; i++ {
		_, err := s.ProcessFrame(newTestFrame(t, string(rune('a'+i))))
		require.NoError(t, err)
	}
	history := s.History()
	// HistorySize of 3 is rounded up to a power of 2
	require.Len(t, history, 4)
	require.Equal(t, "c", history[0].Name)
	require.Equal(t, "f", history[3].Name)
	require.Equal(t, "f", s.Latest().Name)
}

func TestHttpAPI(t *testing.T) {
	s := newTestServer(t, true)
	frame := newTestFrame(t, "frame1")
	_, err := s.ProcessFrame(frame)
	require.NoError(t, err)

	rec := get(t, s, "/api/ping")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, s, "/api/catalog")
	require.Equal(t, http.StatusOK, rec.Code)
	names := []string{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	require.Equal(t, gt.DefaultCatalog().Names(), names)

	rec = get(t, s, "/api/frames/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := gt.FrameResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	require.Equal(t, frame.ID, latest.FrameID)
	require.Equal(t, []string{"LinuxCup", "JaMilch"}, latest.Classnames())
	require.Equal(t, "catalog_miss", latest.Rejected[1].Reason)

	rec = get(t, s, "/api/frames/history")
	require.Equal(t, http.StatusOK, rec.Code)
	history := []gt.FrameResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)

	rec = get(t, s, "/api/frames/annotations/"+frame.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	stored := []scene.AnnotatedRegion{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Len(t, stored, 2)
	require.Equal(t, "UnrealEngine", stored[0].Annotation.Classification.Classifier)

	require.Equal(t, http.StatusNotFound, get(t, s, "/api/frames/annotations/00000000-0000-0000-0000-000000000000").Code)

	rec = get(t, s, "/api/regions/at?x=110&y=50")
	require.Equal(t, http.StatusOK, rec.Code)
	region := scene.AnnotatedRegion{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &region))
	require.Equal(t, int64(3), region.Region.ClusterID)
	require.Equal(t, http.StatusNotFound, get(t, s, "/api/regions/at?x=0&y=0").Code)
	require.Equal(t, http.StatusBadRequest, get(t, s, "/api/regions/at?x=1").Code)

	rec = get(t, s, "/api/classes/histogram")
	require.Equal(t, http.StatusOK, rec.Code)
	hist := []annotationdb.ClassCount{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Equal(t, []annotationdb.ClassCount{{Classname: "JaMilch", Count: 1}, {Classname: "LinuxCup", Count: 1}}, hist)

	rec = get(t, s, "/api/overlay/latest.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	require.Equal(t, []byte{0xff, 0xd8}, rec.Body.Bytes()[:2])
}

func TestHttpWithoutDB(t *testing.T) {
	s := newTestServer(t, false)
	require.Equal(t, http.StatusBadRequest, get(t, s, "/api/classes/histogram").Code)
	require.Equal(t, http.StatusBadRequest, get(t, s, "/api/frames/annotations/abc").Code)
	require.Equal(t, http.StatusNotFound, get(t, s, "/api/overlay/latest.jpg").Code)
}

func TestFeed(t *testing.T) {
	s := newTestServer(t, false)
	httpServer := httptest.NewServer(s.httpRouter)
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		s.feedsLock.Lock()
		defer s.feedsLock.Unlock()
		return len(s.feeds) == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = s.ProcessFrame(newTestFrame(t, "live"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	result := gt.FrameResult{}
	require.NoError(t, json.Unmarshal(msg, &result))
	require.Equal(t, "live", result.Name)
	require.Equal(t, []string{"LinuxCup", "JaMilch"}, result.Classnames())
}

func TestShutdownTwice(t *testing.T) {
	s := newTestServer(t, false)
	s.Shutdown()
	require.NoError(t, <-s.ShutdownComplete)
	s.Shutdown()
}

func TestStats(t *testing.T) {
	s := newTestServer(t, false)
	for i := 0; i < 2; i++ {
		_, err := s.ProcessFrame(newTestFrame(t, "frame"))
		require.NoError(t, err)
	}
	rec := get(t, s, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := StatsJSON{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, int64(2), stats.Frames)
	require.Equal(t, int64(4), stats.Accepted)
	require.Equal(t, 4.0, stats.AvgRegionsPerFrame)
	require.Equal(t, map[string]int64{"no_color_match": 2, "catalog_miss": 2}, stats.Rejected)
	require.Equal(t, map[string]int64{"LinuxCup": 2, "JaMilch": 2}, stats.Classes)
}

func TestListenAndShutdown(t *testing.T) {
	s := newTestServer(t, false)
	done := make(chan error, 1)
	go func() {
		done <- s.ListenHTTP("127.0.0.1:0")
	}()
	s.Shutdown()
	require.NoError(t, <-s.ShutdownComplete)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenHTTP did not return after Shutdown")
	}

	// Listening after shutdown returns immediately
	require.NoError(t, s.ListenHTTP("127.0.0.1:0"))
}
