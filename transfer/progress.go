package transfer

import "io"

// UploadProgress reports bytes moved for one file, on both the sending and
// receiving side.
type UploadProgress struct {
	FileID   string
	Position int64
	Finish   bool
}

// emitProgress never blocks; a slow consumer loses intermediate updates but
// the transfer keeps moving.
func emitProgress(ch chan<- UploadProgress, p UploadProgress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}

// progressReader wraps a file body and reports positions as it is drained.
// The finish event fires exactly once, at EOF, so zero-byte files still
// produce it.
type progressReader struct {
	r        io.Reader
	fileID   string
	size     int64
	pos      int64
	ch       chan<- UploadProgress
	finished bool
}

func newProgressReader(r io.Reader, fileID string, size int64, ch chan<- UploadProgress) *progressReader {
	return &progressReader{r: r, fileID: fileID, size: size, ch: ch}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.pos += int64(n)
		if pr.pos > pr.size {
			pr.pos = pr.size
		}
		emitProgress(pr.ch, UploadProgress{FileID: pr.fileID, Position: pr.pos, Finish: false})
	}
	if err == io.EOF && !pr.finished {
		pr.finished = true
		emitProgress(pr.ch, UploadProgress{FileID: pr.fileID, Position: pr.pos, Finish: true})
	}
	return n, err
}
