package transfer

import (
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/types"
)

// SendingFile is one queued outgoing file. Path is empty for inline texts,
// which carry their payload in the dto preview.
type SendingFile struct {
	Index  int
	File   types.FileDto
	Status FileStatus
	Path   string
	Token  string
}

// SendingFiles keeps insertion order so uploads happen in the order the user
// queued them.
type SendingFiles struct {
	order []string
	files map[string]*SendingFile
}

func NewSendingFiles() *SendingFiles {
	return &SendingFiles{files: make(map[string]*SendingFile)}
}

func (s *SendingFiles) Len() int {
	return len(s.order)
}

func (s *SendingFiles) Get(fileID string) *SendingFile {
	return s.files[fileID]
}

// All returns the queued files in insertion order.
func (s *SendingFiles) All() []*SendingFile {
	out := make([]*SendingFile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.files[id])
	}
	return out
}

func (s *SendingFiles) insert(file types.FileDto, path string) {
	s.files[file.ID] = &SendingFile{
		Index:  len(s.order),
		File:   file,
		Status: FileStatusQueue,
		Path:   path,
	}
	s.order = append(s.order, file.ID)
}

// AddText queues an inline text payload named after its md5 hash. The text
// rides in the preview field when it is short enough to show.
func (s *SendingFiles) AddText(text string, preview bool) {
	id := tool.GenerateRandomUUID()
	textHash := tool.Md5Hex([]byte(text))
	file := types.FileDto{
		ID:       id,
		FileName: textHash + ".txt",
		Size:     int64(len(text)),
		FileType: types.FileTypeText,
		Hash:     &textHash,
	}
	if preview {
		file.Preview = &text
	}
	s.insert(file, "")
}

// AddFile queues a single file. An explicit fileName overrides the basename,
// which AddDir uses to keep relative paths.
func (s *SendingFiles) AddFile(path string, fileName string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	id := tool.GenerateRandomUUID()
	if fileName == "" {
		fileName = filepath.Base(path)
	}
	file := types.FileDto{
		ID:       id,
		FileName: fileName,
		Size:     info.Size(),
		FileType: ClassifyFileName(fileName),
	}
	s.insert(file, path)
	return nil
}

// AddDir queues every regular file under path, named relative to the
// directory's parent so the receiver recreates the tree.
func (s *SendingFiles) AddDir(path string) error {
	base := filepath.Dir(filepath.Clean(path))
	return filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(base, entry)
		if err != nil {
			return err
		}
		fileName := filepath.ToSlash(rel)
		tool.DefaultLogger.Debugf("add file %s", fileName)
		return s.AddFile(entry, fileName)
	})
}

// UpdateTokens applies the recipient's selection: files with a token start
// sending, the rest are skipped.
func (s *SendingFiles) UpdateTokens(tokens map[string]string) {
	for _, id := range s.order {
		file := s.files[id]
		if token, ok := tokens[id]; ok {
			file.Status = FileStatusSending
			file.Token = token
		} else {
			file.Status = FileStatusSkipped
		}
	}
}

// ToFinishStatus marks a file terminal after its upload attempt.
func (s *SendingFiles) ToFinishStatus(fileID string, success bool) {
	file, ok := s.files[fileID]
	if !ok {
		return
	}
	if success {
		file.Status = FileStatusFinished
	} else {
		file.Status = FileStatusFailed
	}
}

// ToDtoMap builds the files map for the prepare-upload request.
func (s *SendingFiles) ToDtoMap() map[string]types.FileDto {
	out := make(map[string]types.FileDto, len(s.order))
	for id, file := range s.files {
		out[id] = file.File
	}
	return out
}

// ClassifyFileName buckets a file into the coarse protocol categories by its
// extension's MIME type.
func ClassifyFileName(fileName string) types.FileType {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".apk" {
		return types.FileTypeApk
	}
	mediaType := mime.TypeByExtension(ext)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return types.FileTypeImage
	case strings.HasPrefix(mediaType, "video/"):
		return types.FileTypeVideo
	case mediaType == "application/pdf":
		return types.FileTypePdf
	case strings.HasPrefix(mediaType, "text/"):
		return types.FileTypeText
	case mediaType == "application/vnd.android.package-archive":
		return types.FileTypeApk
	default:
		return types.FileTypeOther
	}
}

// ContentTypeFor returns the upload Content-Type for a file name, falling
// back to octet-stream like every other implementation does.
func ContentTypeFor(fileName string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); t != "" {
		return t
	}
	return "application/octet-stream"
}
