package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/nekoha/localsend-cli/transfer"
	"github.com/nekoha/localsend-cli/types"
)

// printProgress renders transfer progress until the channel closes. One line
// per file, rewritten in place while the file moves.
func printProgress(files map[string]types.FileDto, progress <-chan transfer.UploadProgress) {
	for p := range progress {
		printProgressEvent(files, p)
	}
}

func printProgressEvent(files map[string]types.FileDto, p transfer.UploadProgress) {
	file, ok := files[p.FileID]
	if !ok {
		return
	}
	name := file.FileName
	if len(name) > 40 {
		name = "..." + name[len(name)-37:]
	}
	icon := fileIcon(file.FileType)
	if p.Finish {
		fmt.Printf("\r%s%-40s %10s  done\n", icon, name, formatSize(file.Size))
		return
	}
	percent := 100
	if file.Size > 0 {
		percent = int(p.Position * 100 / file.Size)
	}
	fmt.Printf("\r%s%-40s %10s  %3d%%", icon, name, formatSize(p.Position), percent)
}

// Nerd font glyphs per file type. --no-nerd turns them off for terminals
// without a patched font.
var fileTypeIcons = map[types.FileType]string{
	types.FileTypeImage: "",
	types.FileTypeVideo: "",
	types.FileTypePdf:   "",
	types.FileTypeText:  "",
	types.FileTypeApk:   "",
	types.FileTypeOther: "",
}

func fileIcon(fileType types.FileType) string {
	if flagNoNerd {
		return ""
	}
	icon, ok := fileTypeIcons[fileType]
	if !ok {
		icon = fileTypeIcons[types.FileTypeOther]
	}
	return icon + " "
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func askYesNo(reader *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
