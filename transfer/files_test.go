package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nekoha/localsend-cli/types"
)

func TestAddTextNamesByHash(t *testing.T) {
	files := NewSendingFiles()
	files.AddText("hello", true)

	if files.Len() != 1 {
		t.Fatalf("expected 1 file, got %d", files.Len())
	}
	file := files.All()[0]
	// md5("hello")
	if file.File.FileName != "5d41402abc4b2a76b9719d911017c592.txt" {
		t.Errorf("unexpected file name: %s", file.File.FileName)
	}
	if file.File.Size != 5 {
		t.Errorf("unexpected size: %d", file.File.Size)
	}
	if file.File.Preview == nil || *file.File.Preview != "hello" {
		t.Error("expected preview to carry the text")
	}
	if file.File.FileType != types.FileTypeText {
		t.Errorf("unexpected file type: %s", file.File.FileType)
	}
	if file.Path != "" {
		t.Errorf("text payload should have no path, got %s", file.Path)
	}
}

func TestAddTextWithoutPreview(t *testing.T) {
	files := NewSendingFiles()
	files.AddText("some long text", false)

	file := files.All()[0]
	if file.File.Preview != nil {
		t.Error("preview should be omitted")
	}
	if file.File.Hash == nil {
		t.Error("hash should still be present")
	}
}

func TestAddFileAndDirKeepOrder(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "photos", "trip")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.png", "b.png"} {
		if err := os.WriteFile(filepath.Join(sub, name), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files := NewSendingFiles()
	files.AddText("first", true)
	if err := files.AddDir(filepath.Join(dir, "photos")); err != nil {
		t.Fatalf("AddDir failed: %v", err)
	}

	all := files.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 files, got %d", len(all))
	}
	if all[0].File.FileType != types.FileTypeText {
		t.Error("insertion order lost")
	}
	// Directory entries are named relative to the directory's parent.
	for _, file := range all[1:] {
		if file.File.FileName != "photos/trip/a.png" && file.File.FileName != "photos/trip/b.png" {
			t.Errorf("unexpected relative name: %s", file.File.FileName)
		}
		if file.File.FileType != types.FileTypeImage {
			t.Errorf("unexpected type for %s: %s", file.File.FileName, file.File.FileType)
		}
	}
}

func TestUpdateTokens(t *testing.T) {
	files := NewSendingFiles()
	files.AddText("one", true)
	files.AddText("two", true)
	all := files.All()

	files.UpdateTokens(map[string]string{all[0].File.ID: "token-1"})

	if all[0].Status != FileStatusSending || all[0].Token != "token-1" {
		t.Errorf("accepted file not marked sending: %+v", all[0])
	}
	if all[1].Status != FileStatusSkipped {
		t.Errorf("unselected file not skipped: %+v", all[1])
	}
}

func TestClassifyFileName(t *testing.T) {
	cases := map[string]types.FileType{
		"photo.JPG":    types.FileTypeImage,
		"clip.mp4":     types.FileTypeVideo,
		"report.pdf":   types.FileTypePdf,
		"notes.txt":    types.FileTypeText,
		"app.apk":      types.FileTypeApk,
		"archive.zip":  types.FileTypeOther,
		"no_extension": types.FileTypeOther,
	}
	for name, want := range cases {
		if got := ClassifyFileName(name); got != want {
			t.Errorf("ClassifyFileName(%q) = %s, want %s", name, got, want)
		}
	}
}
