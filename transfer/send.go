package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/types"
)

// SendSession drives one outgoing transfer. It registers itself in the
// server state while uploading so an incoming cancel can abort it.
type SendSession struct {
	SessionID string

	info   types.RegisterDto
	target types.Device
	files  *SendingFiles

	// RemoteSessionID is empty when the target speaks v1.
	RemoteSessionID string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSendSession(device *types.Device, target types.Device, files *SendingFiles) *SendSession {
	return &SendSession{
		SessionID: tool.GenerateRandomUUID(),
		info:      types.NewRegisterDto(device),
		target:    target,
		files:     files,
	}
}

// Files exposes the queue for progress rendering.
func (s *SendSession) Files() *SendingFiles {
	return s.files
}

// Target returns the peer this session uploads to.
func (s *SendSession) Target() types.Device {
	return s.target
}

// Upload negotiates the transfer and streams every accepted file in queue
// order. It blocks until the transfer finishes or is cancelled; the session
// is registered in state for the duration so cancel endpoints can reach it.
// No progress event is delivered after Upload returns, so the caller may
// close progressTx right away.
func (s *SendSession) Upload(ctx context.Context, state *ServerState, progressTx chan<- UploadProgress) error {
	request := types.PrepareUploadRequest{
		Info:  s.info,
		Files: s.files.ToDtoMap(),
	}
	payload, err := sonic.Marshal(&request)
	if err != nil {
		return err
	}
	url := types.RoutePrepareUpload.Target(&s.target)
	resp, err := tool.TransferHttpClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return ErrNothingSelected
	case http.StatusForbidden:
		return ErrRejected
	case http.StatusConflict:
		return ErrRecipientBusy
	default:
		return &UnknownStatusError{Code: resp.StatusCode}
	}

	var tokens map[string]string
	if types.ParseVersion(s.target.Version) == types.V1 {
		if err := sonic.Unmarshal(body, &tokens); err != nil {
			return err
		}
	} else {
		var envelope types.PrepareUploadResponse
		if err := sonic.Unmarshal(body, &envelope); err != nil {
			return err
		}
		s.RemoteSessionID = envelope.SessionID
		tokens = envelope.Files
	}
	if len(tokens) == 0 {
		return ErrNothingSelected
	}
	s.files.UpdateTokens(tokens)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	// The HTTP transport may keep draining a request body after Do returns,
	// so file readers never write to progressTx directly. They report into a
	// relay, and the relay goroutine is the only writer of progressTx; it
	// exits before Upload returns, so the caller may close the channel then.
	relay := make(chan UploadProgress, 64)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		for {
			select {
			case p := <-relay:
				emitProgress(progressTx, p)
			case <-s.done:
				for {
					select {
					case p := <-relay:
						emitProgress(progressTx, p)
					default:
						return
					}
				}
			}
		}
	}()

	state.Lock()
	state.SendSession = s
	state.Unlock()

	go func() {
		defer close(s.done)
		for _, file := range s.files.All() {
			if file.Status == FileStatusSkipped {
				continue
			}
			if workerCtx.Err() != nil {
				return
			}
			sendErr := s.uploadFile(workerCtx, file, relay)
			if sendErr != nil {
				tool.DefaultLogger.Errorf("Failed to upload file %s: %v", file.File.FileName, sendErr)
			}

			state.Lock()
			if state.SendSession != nil {
				state.SendSession.files.ToFinishStatus(file.File.ID, sendErr == nil)
			}
			state.Unlock()
		}
	}()

	<-s.done
	<-relayDone
	state.Lock()
	state.SendSession = nil
	state.Unlock()

	if workerCtx.Err() != nil {
		return ErrCancelledByReceiver
	}
	return nil
}

func (s *SendSession) uploadFile(ctx context.Context, file *SendingFile, progressTx chan<- UploadProgress) error {
	dto := file.File

	var source io.ReadCloser
	if file.Path != "" {
		f, err := os.Open(file.Path)
		if err != nil {
			return err
		}
		source = f
	} else if dto.FileType == types.FileTypeText && dto.Preview != nil {
		source = io.NopCloser(strings.NewReader(*dto.Preview))
	} else {
		return fmt.Errorf("file %s has no content source", dto.ID)
	}
	defer source.Close()

	url := fmt.Sprintf("%s?fileId=%s&token=%s",
		types.RouteUpload.Target(&s.target), dto.ID, file.Token)
	if s.RemoteSessionID != "" {
		url += "&sessionId=" + s.RemoteSessionID
	}

	reader := newProgressReader(source, dto.ID, dto.Size, progressTx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	req.ContentLength = dto.Size
	req.Header.Set("Content-Type", ContentTypeFor(dto.FileName))

	resp, err := tool.TransferHttpClient.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &UnknownStatusError{Code: resp.StatusCode}
	}
	return nil
}

// CancelByReceiver aborts the worker after the peer asked us to stop. No
// cancel call goes back out.
func (s *SendSession) CancelByReceiver() error {
	return s.cancelSession(false)
}

// CancelBySender aborts the worker and tells the peer the transfer is over.
func (s *SendSession) CancelBySender() error {
	return s.cancelSession(true)
}

func (s *SendSession) cancelSession(fromSender bool) error {
	if s.cancel == nil {
		return ErrNoPermission
	}
	var cancelErr error
	if fromSender {
		url := types.RouteCancel.Target(&s.target)
		if s.RemoteSessionID != "" {
			url += "?sessionId=" + s.RemoteSessionID
		}
		resp, err := tool.GetHttpClient().Post(url, "", nil)
		if err != nil {
			cancelErr = err
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusOK:
			case http.StatusForbidden:
				cancelErr = ErrNoPermission
			default:
				cancelErr = &UnknownStatusError{Code: resp.StatusCode}
			}
		}
	}
	s.cancel()
	if cancelErr != nil {
		return cancelErr
	}
	tool.DefaultLogger.Infof("%s cancelled, remote session id: %s", s.SessionID, s.RemoteSessionID)
	return nil
}
