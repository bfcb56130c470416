package controllers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/nekoha/localsend-cli/transfer"
	"github.com/nekoha/localsend-cli/types"
)

const testPeerAddr = "192.0.2.10:40000"

func setupRouter(state *transfer.ServerState) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.SetTrustedProxies(nil)

	self := &types.Device{
		Version:     types.ProtocolVersion2,
		Port:        types.DefaultPort,
		Fingerprint: "self-fp",
		Alias:       "TestReceiver",
		DeviceType:  types.DeviceTypeHeadless,
	}
	uploadCtrl := NewUploadController(state)
	cancelCtrl := NewCancelController(state)
	infoCtrl := NewInfoController(self)

	v2 := router.Group("/api/localsend/v2")
	{
		v2.GET("/info", infoCtrl.HandleInfoV2)
		v2.POST("/register", infoCtrl.HandleRegister)
		v2.POST("/prepare-upload", uploadCtrl.HandlePrepareUpload)
		v2.POST("/upload", uploadCtrl.HandleUpload)
		v2.POST("/cancel", cancelCtrl.HandleCancelV2)
	}
	v1 := router.Group("/api/localsend/v1")
	{
		v1.GET("/info", infoCtrl.HandleInfoV1)
		v1.POST("/send-request", uploadCtrl.HandlePrepareUploadV1)
		v1.POST("/send", uploadCtrl.HandleUploadV1)
		v1.POST("/cancel", cancelCtrl.HandleCancelV1)
	}
	return router
}

func quickSaveState(t *testing.T) *transfer.ServerState {
	t.Helper()
	return transfer.NewServerState(types.Settings{
		Destination: t.TempDir(),
		QuickSave:   true,
	})
}

func doRequest(router *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = testPeerAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func prepareBody(t *testing.T, fileNames ...string) []byte {
	t.Helper()
	req := types.PrepareUploadRequest{
		Info:  types.RegisterDto{Alias: "Peer", Fingerprint: "peer-fp"},
		Files: make(map[string]types.FileDto),
	}
	for _, name := range fileNames {
		id := name + "-id"
		req.Files[id] = types.FileDto{ID: id, FileName: name, Size: 4, FileType: types.FileTypeOther}
	}
	body, err := sonic.Marshal(&req)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestPrepareUploadAndUploadV2(t *testing.T) {
	state := quickSaveState(t)
	router := setupRouter(state)

	w := doRequest(router, http.MethodPost, "/api/localsend/v2/prepare-upload", prepareBody(t, "hello.txt"))
	if w.Code != http.StatusOK {
		t.Fatalf("prepare-upload status %d: %s", w.Code, w.Body.String())
	}
	var resp types.PrepareUploadResponse
	if err := sonic.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.SessionID == "" || len(resp.Files) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	target := "/api/localsend/v2/upload?sessionId=" + resp.SessionID +
		"&fileId=hello.txt-id&token=" + resp.Files["hello.txt-id"]
	w = doRequest(router, http.MethodPost, target, []byte("data"))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}

	saved, err := os.ReadFile(filepath.Join(state.Settings.Destination, "hello.txt"))
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if string(saved) != "data" {
		t.Errorf("unexpected content: %q", saved)
	}

	// The finished session is gone; the same call now has nothing to hit.
	w = doRequest(router, http.MethodPost, target, []byte("data"))
	if w.Code != http.StatusConflict {
		t.Errorf("replay status %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No session") {
		t.Errorf("unexpected replay body: %q", w.Body.String())
	}
}

func TestPrepareUploadV1ReturnsBareMap(t *testing.T) {
	state := quickSaveState(t)
	router := setupRouter(state)

	w := doRequest(router, http.MethodPost, "/api/localsend/v1/send-request", prepareBody(t, "old.txt"))
	if w.Code != http.StatusOK {
		t.Fatalf("send-request status %d: %s", w.Code, w.Body.String())
	}
	var tokens map[string]string
	if err := sonic.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
		t.Fatalf("v1 response is not a bare map: %v", err)
	}
	if len(tokens) != 1 || tokens["old.txt-id"] == "" {
		t.Fatalf("unexpected token map: %v", tokens)
	}

	// v1 upload needs no sessionId.
	target := "/api/localsend/v1/send?fileId=old.txt-id&token=" + tokens["old.txt-id"]
	w = doRequest(router, http.MethodPost, target, []byte("data"))
	if w.Code != http.StatusOK {
		t.Fatalf("v1 send status %d: %s", w.Code, w.Body.String())
	}
}

func TestPrepareUploadEmptyFiles(t *testing.T) {
	router := setupRouter(quickSaveState(t))

	w := doRequest(router, http.MethodPost, "/api/localsend/v2/prepare-upload", prepareBody(t))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Request must contain at least one file") {
		t.Errorf("unexpected body: %q", w.Body.String())
	}
}

func TestUploadWrongToken(t *testing.T) {
	state := quickSaveState(t)
	router := setupRouter(state)

	w := doRequest(router, http.MethodPost, "/api/localsend/v2/prepare-upload", prepareBody(t, "a.txt"))
	var resp types.PrepareUploadResponse
	if err := sonic.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	target := "/api/localsend/v2/upload?sessionId=" + resp.SessionID + "&fileId=a.txt-id&token=bogus"
	w = doRequest(router, http.MethodPost, target, []byte("data"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid token") {
		t.Errorf("unexpected body: %q", w.Body.String())
	}
}

func TestUploadFromDifferentPeer(t *testing.T) {
	state := quickSaveState(t)
	router := setupRouter(state)

	w := doRequest(router, http.MethodPost, "/api/localsend/v2/prepare-upload", prepareBody(t, "a.txt"))
	var resp types.PrepareUploadResponse
	if err := sonic.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	target := "/api/localsend/v2/upload?sessionId=" + resp.SessionID +
		"&fileId=a.txt-id&token=" + resp.Files["a.txt-id"]
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader([]byte("data")))
	req.RemoteAddr = "192.0.2.66:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rec.Code)
	}
}

func TestCancelWithoutSession(t *testing.T) {
	router := setupRouter(quickSaveState(t))

	w := doRequest(router, http.MethodPost, "/api/localsend/v1/cancel", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("v1 cancel status %d, want 403", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No permission") {
		t.Errorf("unexpected body: %q", w.Body.String())
	}

	w = doRequest(router, http.MethodPost, "/api/localsend/v2/cancel", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("v2 cancel without sessionId status %d, want 403", w.Code)
	}
}

func TestInfoEndpoints(t *testing.T) {
	router := setupRouter(quickSaveState(t))

	w := doRequest(router, http.MethodGet, "/api/localsend/v2/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("v2 info status %d", w.Code)
	}
	var v2 types.V2InfoResponse
	if err := sonic.Unmarshal(w.Body.Bytes(), &v2); err != nil {
		t.Fatal(err)
	}
	if v2.Alias != "TestReceiver" || v2.Fingerprint != "self-fp" {
		t.Errorf("unexpected v2 info: %+v", v2)
	}

	w = doRequest(router, http.MethodGet, "/api/localsend/v1/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("v1 info status %d", w.Code)
	}
	var v1 types.V1InfoResponse
	if err := sonic.Unmarshal(w.Body.Bytes(), &v1); err != nil {
		t.Fatal(err)
	}
	if v1.Alias != "TestReceiver" {
		t.Errorf("unexpected v1 info: %+v", v1)
	}
	if strings.Contains(w.Body.String(), "fingerprint") {
		t.Error("v1 info must not expose the fingerprint")
	}
}

func TestRegisterAnswersWithSelf(t *testing.T) {
	router := setupRouter(quickSaveState(t))

	dto := types.RegisterDto{Alias: "Visitor", Fingerprint: "visitor-fp"}
	body, _ := sonic.Marshal(&dto)
	w := doRequest(router, http.MethodPost, "/api/localsend/v2/register", body)
	if w.Code != http.StatusOK {
		t.Fatalf("register status %d", w.Code)
	}
	var answer types.RegisterDto
	if err := sonic.Unmarshal(w.Body.Bytes(), &answer); err != nil {
		t.Fatal(err)
	}
	if answer.Fingerprint != "self-fp" || answer.Alias != "TestReceiver" {
		t.Errorf("unexpected register answer: %+v", answer)
	}
}
