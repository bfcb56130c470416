package transfer

import (
	"sync"

	"github.com/nekoha/localsend-cli/types"
)

// FileStatus tracks one file through a session, on either side of the wire.
type FileStatus int

const (
	FileStatusQueue FileStatus = iota
	FileStatusSkipped
	FileStatusSending
	FileStatusFailed
	FileStatusFinished
)

func (s FileStatus) String() string {
	switch s {
	case FileStatusQueue:
		return "queue"
	case FileStatusSkipped:
		return "skipped"
	case FileStatusSending:
		return "sending"
	case FileStatusFailed:
		return "failed"
	case FileStatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ReceiveStatus is the receive session lifecycle. Waiting means the offer is
// pending user selection; Sending means tokens are issued and uploads may
// arrive.
type ReceiveStatus int

const (
	ReceiveStatusWaiting ReceiveStatus = iota
	ReceiveStatusSending
)

// ReceivingFile is one offered file inside a receive session. The token is
// one-shot: it is cleared when the upload for it begins.
type ReceivingFile struct {
	File   types.FileDto
	Status FileStatus
	Token  string
}

// ReceiveSession is the single in-flight incoming transfer.
type ReceiveSession struct {
	SessionID            string
	Status               ReceiveStatus
	Sender               types.Device
	Files                map[string]*ReceivingFile
	DestinationDirectory string
	ProgressTx           chan<- UploadProgress
}

// ServerMessage is pushed to the local client when a peer offers files.
type ServerMessage struct {
	Sender types.Device
	Files  []types.FileDto
}

// ClientMessage is the local client's reply to an offer. A closed ClientRx
// or an empty selection both count as nothing selected.
type ClientMessage struct {
	Declined bool
	Progress chan<- UploadProgress
	Files    []types.FileDto
}

// ServerState holds at most one receive session and one send session. All
// access goes through the embedded mutex; PrepareUpload additionally uses
// TryLock so a second concurrent offer is rejected instead of queued.
type ServerState struct {
	sync.Mutex

	Settings       types.Settings
	ServerTx       chan ServerMessage
	ClientRx       chan ClientMessage
	ReceiveSession *ReceiveSession
	SendSession    *SendSession
}

// NewServerState wires the bounded UI channels. Capacity one keeps a single
// pending offer without ever blocking the HTTP handler on a dead client.
func NewServerState(settings types.Settings) *ServerState {
	return &ServerState{
		Settings: settings,
		ServerTx: make(chan ServerMessage, 1),
		ClientRx: make(chan ClientMessage, 1),
	}
}
