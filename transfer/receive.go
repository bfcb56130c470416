package transfer

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nekoha/localsend-cli/notify"
	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/types"
)

// UploadQuery carries the query parameters of an upload or cancel call.
type UploadQuery struct {
	SessionID string
	FileID    string
	Token     string
}

// PrepareUpload handles an incoming file offer. It installs a Waiting
// session, asks the local client to pick files (or accepts everything in
// quick save mode), then promotes the session to Sending with one-shot
// tokens for the accepted subset.
func PrepareUpload(state *ServerState, peerIP string, req *types.PrepareUploadRequest) (resp *types.PrepareUploadResponse, err error) {
	if !state.TryLock() {
		return nil, ErrSessionBlocked
	}
	if state.ReceiveSession != nil {
		state.Unlock()
		return nil, ErrSessionBlocked
	}
	if len(req.Files) == 0 {
		state.Unlock()
		return nil, ErrEmptyFiles
	}

	sessionID := tool.GenerateRandomUUID()
	sender := req.Info.ToDevice(peerIP, types.DefaultPort, false)
	session := &ReceiveSession{
		SessionID:            sessionID,
		Status:               ReceiveStatusWaiting,
		Sender:               sender,
		Files:                make(map[string]*ReceivingFile, len(req.Files)),
		DestinationDirectory: state.Settings.Destination,
	}
	offered := make([]types.FileDto, 0, len(req.Files))
	for id, file := range req.Files {
		file.ID = id
		session.Files[id] = &ReceivingFile{File: file, Status: FileStatusQueue}
		offered = append(offered, file)
	}
	state.ReceiveSession = session
	quickSave := state.Settings.QuickSave
	state.Unlock()

	// The session must not outlive a failed negotiation.
	defer func() {
		if err != nil {
			dropIfWaiting(state, sessionID)
		}
	}()

	var accepted []types.FileDto
	var progressTx chan<- UploadProgress
	if quickSave {
		accepted = offered
	} else {
		state.ServerTx <- ServerMessage{Sender: sender, Files: offered}
		msg, ok := <-state.ClientRx
		if !ok {
			return nil, ErrNothingSelected
		}
		if msg.Declined {
			return nil, ErrSessionDeclined
		}
		accepted = msg.Files
		progressTx = msg.Progress
	}
	if len(accepted) == 0 {
		return nil, ErrNothingSelected
	}

	state.Lock()
	defer state.Unlock()
	if state.ReceiveSession != session {
		return nil, ErrInvalidServerState
	}

	tokens := make(map[string]string, len(accepted))
	kept := make(map[string]*ReceivingFile, len(accepted))
	for _, file := range accepted {
		receiving, ok := session.Files[file.ID]
		if !ok {
			continue
		}
		token := tool.GenerateRandomUUID()
		receiving.Token = token
		tokens[file.ID] = token
		kept[file.ID] = receiving
	}
	if len(tokens) == 0 {
		return nil, ErrNothingSelected
	}
	session.Files = kept
	session.Status = ReceiveStatusSending
	session.ProgressTx = progressTx

	notify.Broadcast(types.Notification{
		Type:    types.NotifyTypeSessionStarted,
		Title:   "Incoming transfer",
		Message: sender.Alias,
		Data:    map[string]any{"sessionId": sessionID, "files": len(tokens)},
	})
	return &types.PrepareUploadResponse{SessionID: sessionID, Files: tokens}, nil
}

func dropIfWaiting(state *ServerState, sessionID string) {
	state.Lock()
	defer state.Unlock()
	session := state.ReceiveSession
	if session != nil && session.SessionID == sessionID && session.Status == ReceiveStatusWaiting {
		state.ReceiveSession = nil
	}
}

// SaveUpload streams one file body to disk. The token is consumed on entry
// so a replayed upload for the same file is rejected.
func SaveUpload(state *ServerState, peerIP string, query UploadQuery, body io.Reader, version types.Version) error {
	state.Lock()
	session := state.ReceiveSession
	if session == nil {
		state.Unlock()
		return ErrSessionNotExists
	}
	if session.Sender.IP != peerIP {
		state.Unlock()
		return &InvalidIPError{IP: peerIP}
	}
	if session.Status != ReceiveStatusSending {
		state.Unlock()
		return ErrInvalidRecipient
	}
	if query.FileID == "" || query.Token == "" {
		state.Unlock()
		return ErrInvalidParameters
	}
	// An absent sessionId on v2 falls through here: "" never matches.
	if version == types.V2 && query.SessionID != session.SessionID {
		state.Unlock()
		return ErrInvalidSessionID
	}
	file, ok := session.Files[query.FileID]
	if !ok || file.Token == "" || file.Token != query.Token {
		state.Unlock()
		return ErrInvalidToken
	}
	file.Token = ""
	file.Status = FileStatusSending
	dest := session.DestinationDirectory
	progressTx := session.ProgressTx
	dto := file.File
	state.Unlock()

	streamErr := streamToFile(dest, dto, body, progressTx)

	state.Lock()
	defer state.Unlock()
	if state.ReceiveSession != session {
		return streamErr
	}
	if streamErr == nil {
		file.Status = FileStatusFinished
		notify.Broadcast(types.Notification{
			Type:    types.NotifyTypeFileReceived,
			Message: dto.FileName,
			Data:    map[string]any{"sessionId": session.SessionID, "fileId": dto.ID, "size": dto.Size},
		})
	} else {
		file.Status = FileStatusFailed
	}
	if sessionDone(session) {
		state.ReceiveSession = nil
		// No stream is active once every file is terminal, so closing the
		// progress channel here is safe and ends the consumer loop.
		if session.ProgressTx != nil {
			close(session.ProgressTx)
		}
		notify.Broadcast(types.Notification{
			Type: types.NotifyTypeSessionFinished,
			Data: map[string]any{"sessionId": session.SessionID},
		})
	}
	return streamErr
}

func sessionDone(session *ReceiveSession) bool {
	for _, file := range session.Files {
		switch file.Status {
		case FileStatusFinished, FileStatusFailed:
		default:
			return false
		}
	}
	return true
}

// DestroyReceiveSession drops any in-flight receive session, used when the
// local client aborts.
func DestroyReceiveSession(state *ServerState) {
	state.Lock()
	defer state.Unlock()
	if state.ReceiveSession == nil {
		return
	}
	sessionID := state.ReceiveSession.SessionID
	state.ReceiveSession = nil
	notify.Broadcast(types.Notification{
		Type: types.NotifyTypeSessionCancelled,
		Data: map[string]any{"sessionId": sessionID},
	})
}

// streamToFile writes the body under dest, creating parent directories for
// relative names. A read error counts as the sender going away; a write
// error is a local failure. Partial files are removed either way.
func streamToFile(dest string, dto types.FileDto, body io.Reader, progressTx chan<- UploadProgress) error {
	target, err := securePath(dest, dto.FileName)
	if err != nil {
		return ErrSaveFileFailed
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		tool.DefaultLogger.Errorf("Failed to create directory for %s: %v", target, err)
		return ErrSaveFileFailed
	}
	out, err := os.Create(target)
	if err != nil {
		tool.DefaultLogger.Errorf("Failed to create file %s: %v", target, err)
		return ErrSaveFileFailed
	}

	buf := make([]byte, 8*1024)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				tool.DefaultLogger.Errorf("Failed to write %s: %v", target, writeErr)
				out.Close()
				os.Remove(target)
				return ErrSaveFileFailed
			}
			written += int64(n)
			emitProgress(progressTx, UploadProgress{FileID: dto.ID, Position: written, Finish: false})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(target)
			return ErrCancelled
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(target)
		return ErrSaveFileFailed
	}
	emitProgress(progressTx, UploadProgress{FileID: dto.ID, Position: written, Finish: true})
	return nil
}

// securePath joins a wire-provided relative name under dest, rejecting
// anything that escapes it.
func securePath(dest, fileName string) (string, error) {
	if dest == "" {
		dest = "."
	}
	clean := filepath.Clean(filepath.FromSlash(fileName))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return filepath.Join(dest, clean), nil
}
