package transfer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/nekoha/localsend-cli/types"
)

func testDevice() *types.Device {
	return &types.Device{
		IP:          "192.0.2.1",
		Version:     types.ProtocolVersion2,
		Port:        53317,
		Fingerprint: "self-fp",
		Alias:       "Self",
		DeviceType:  types.DeviceTypeHeadless,
	}
}

func deviceForServer(t *testing.T, srv *httptest.Server, version string) types.Device {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return types.Device{
		IP:          u.Hostname(),
		Version:     version,
		Port:        port,
		Fingerprint: "peer-fp",
		Alias:       "Peer",
	}
}

type recordedUpload struct {
	query url.Values
	body  []byte
}

func TestUploadV2EndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, []byte("file-content"), 0o644); err != nil {
		t.Fatal(err)
	}

	files := NewSendingFiles()
	if err := files.AddFile(path, ""); err != nil {
		t.Fatal(err)
	}
	files.AddText("inline text", true)

	var mu sync.Mutex
	uploads := make([]recordedUpload, 0)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/localsend/v2/prepare-upload", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req types.PrepareUploadRequest
		if err := sonic.Unmarshal(body, &req); err != nil {
			t.Errorf("bad prepare-upload body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Files) != 2 {
			t.Errorf("expected 2 offered files, got %d", len(req.Files))
		}
		tokens := make(map[string]string)
		for id := range req.Files {
			tokens[id] = "token-" + id
		}
		resp, _ := sonic.Marshal(types.PrepareUploadResponse{SessionID: "remote-1", Files: tokens})
		w.Write(resp)
	})
	mux.HandleFunc("/api/localsend/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		uploads = append(uploads, recordedUpload{query: r.URL.Query(), body: body})
		mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	state := NewServerState(types.Settings{})
	session := NewSendSession(testDevice(), deviceForServer(t, srv, types.ProtocolVersion2), files)

	progress := make(chan UploadProgress, 100)
	if err := session.Upload(context.Background(), state, progress); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if session.RemoteSessionID != "remote-1" {
		t.Errorf("remote session id not captured: %q", session.RemoteSessionID)
	}
	if state.SendSession != nil {
		t.Error("session should be removed from state after upload")
	}
	if len(uploads) != 2 {
		t.Fatalf("expected 2 uploads, got %d", len(uploads))
	}
	bodies := map[string]bool{}
	for _, up := range uploads {
		if up.query.Get("sessionId") != "remote-1" {
			t.Errorf("upload missing sessionId: %v", up.query)
		}
		fileID := up.query.Get("fileId")
		if up.query.Get("token") != "token-"+fileID {
			t.Errorf("token does not match file: %v", up.query)
		}
		bodies[string(up.body)] = true
	}
	if !bodies["file-content"] || !bodies["inline text"] {
		t.Errorf("unexpected upload bodies: %v", bodies)
	}
	for _, file := range files.All() {
		if file.Status != FileStatusFinished {
			t.Errorf("file %s not finished: %s", file.File.FileName, file.Status)
		}
	}
}

func TestUploadV1UsesBareTokenMap(t *testing.T) {
	files := NewSendingFiles()
	files.AddText("legacy", true)
	fileID := files.All()[0].File.ID

	var uploadQuery url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/api/localsend/v1/send-request", func(w http.ResponseWriter, r *http.Request) {
		resp, _ := sonic.Marshal(map[string]string{fileID: "v1-token"})
		w.Write(resp)
	})
	mux.HandleFunc("/api/localsend/v1/send", func(w http.ResponseWriter, r *http.Request) {
		uploadQuery = r.URL.Query()
		io.Copy(io.Discard, r.Body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	state := NewServerState(types.Settings{})
	session := NewSendSession(testDevice(), deviceForServer(t, srv, types.ProtocolVersion1), files)
	if err := session.Upload(context.Background(), state, nil); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if session.RemoteSessionID != "" {
		t.Errorf("v1 must not produce a remote session id, got %q", session.RemoteSessionID)
	}
	if uploadQuery.Get("token") != "v1-token" {
		t.Errorf("unexpected upload query: %v", uploadQuery)
	}
	if uploadQuery.Get("sessionId") != "" {
		t.Error("v1 upload must not carry a sessionId parameter")
	}
}

func TestUploadPrepareStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNoContent, ErrNothingSelected},
		{http.StatusForbidden, ErrRejected},
		{http.StatusConflict, ErrRecipientBusy},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		files := NewSendingFiles()
		files.AddText("x", true)
		state := NewServerState(types.Settings{})
		session := NewSendSession(testDevice(), deviceForServer(t, srv, types.ProtocolVersion2), files)

		err := session.Upload(context.Background(), state, nil)
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		srv.Close()
	}
}

func TestUploadSkipsUnselectedFiles(t *testing.T) {
	files := NewSendingFiles()
	files.AddText("picked", true)
	files.AddText("ignored", true)
	picked := files.All()[0].File.ID

	var uploadCount int
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/api/localsend/v2/prepare-upload", func(w http.ResponseWriter, r *http.Request) {
		resp, _ := sonic.Marshal(types.PrepareUploadResponse{
			SessionID: "remote-2",
			Files:     map[string]string{picked: "t"},
		})
		w.Write(resp)
	})
	mux.HandleFunc("/api/localsend/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		uploadCount++
		mu.Unlock()
		io.Copy(io.Discard, r.Body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	state := NewServerState(types.Settings{})
	session := NewSendSession(testDevice(), deviceForServer(t, srv, types.ProtocolVersion2), files)
	if err := session.Upload(context.Background(), state, nil); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if uploadCount != 1 {
		t.Errorf("expected exactly 1 upload, got %d", uploadCount)
	}
	if files.All()[1].Status != FileStatusSkipped {
		t.Errorf("unselected file should stay skipped, got %s", files.All()[1].Status)
	}
}

func TestUploadProgressStopsWhenUploadReturns(t *testing.T) {
	files := NewSendingFiles()
	files.AddText(strings.Repeat("a", 1<<20), true)
	id := files.All()[0].File.ID

	mux := http.NewServeMux()
	mux.HandleFunc("/api/localsend/v2/prepare-upload", func(w http.ResponseWriter, r *http.Request) {
		resp, _ := sonic.Marshal(types.PrepareUploadResponse{
			SessionID: "remote-3",
			Files:     map[string]string{id: "t"},
		})
		w.Write(resp)
	})
	mux.HandleFunc("/api/localsend/v2/upload", func(w http.ResponseWriter, r *http.Request) {
		// Answer without draining the body; the transport finishes with it
		// on its own, possibly after Do has already returned.
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	state := NewServerState(types.Settings{})
	session := NewSendSession(testDevice(), deviceForServer(t, srv, types.ProtocolVersion2), files)

	progress := make(chan UploadProgress, 1)
	session.Upload(context.Background(), state, progress)
	close(progress)

	// A late progress event into the closed channel would panic here.
	time.Sleep(50 * time.Millisecond)
}

func TestCancelWithoutRunningUpload(t *testing.T) {
	files := NewSendingFiles()
	files.AddText("x", true)
	session := NewSendSession(testDevice(), types.Device{IP: "192.0.2.9", Port: 1, Version: types.ProtocolVersion2}, files)

	if err := session.CancelBySender(); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("expected ErrNoPermission, got %v", err)
	}
}
