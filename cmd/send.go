package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nekoha/localsend-cli/boardcast"
	"github.com/nekoha/localsend-cli/share"
	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/transfer"
	"github.com/nekoha/localsend-cli/types"
)

// Text payloads longer than this are transmitted without an inline preview.
const textPreviewLimit = 1024

var flagHTTPScan bool

var sendCmd = &cobra.Command{
	Use:     "send <file|dir|text>...",
	Aliases: []string{"s"},
	Short:   "Send files, directories or text to a device",
	Long: `Send queues every argument and offers it to a device found on the
network. An argument that resolves to a file or directory is sent as such;
anything else is sent as a text snippet.

Examples:
  localsend-cli send notes.txt pictures/
  localsend-cli send "meet at 6"
  localsend-cli send --http-scan big.iso`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(args)
	},
}

func init() {
	sendCmd.Flags().BoolVar(&flagHTTPScan, "http-scan", false, "discover devices over HTTP instead of multicast")
	rootCmd.AddCommand(sendCmd)
}

func runSend(inputs []string) error {
	files := transfer.NewSendingFiles()
	seen := make(map[string]struct{})
	for _, input := range inputs {
		if _, dup := seen[input]; dup {
			continue
		}
		seen[input] = struct{}{}
		if info, err := os.Stat(input); err == nil {
			if info.IsDir() {
				if err := files.AddDir(input); err != nil {
					return err
				}
				continue
			}
			if info.Mode().IsRegular() {
				if err := files.AddFile(input, ""); err != nil {
					return err
				}
				continue
			}
		}
		files.AddText(input, len(input) < textPreviewLimit)
	}
	if files.Len() == 0 {
		return errors.New("nothing to send")
	}

	app, err := setup(types.Settings{})
	if err != nil {
		return err
	}
	defer app.scanner.Close()
	app.startServer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSendSignalHandler(app.state)

	printQueuedFiles(files)

	reader := bufio.NewReader(os.Stdin)
	for {
		err := runSendOnce(ctx, app, files, reader)
		if err != nil && !errors.Is(err, transfer.ErrNothingSelected) {
			fmt.Printf("Error: %v\n", err)
		}
		fmt.Println()
		if !askYesNo(reader, "Send to another device?") {
			return nil
		}
	}
}

func runSendOnce(ctx context.Context, app *appContext, files *transfer.SendingFiles, reader *bufio.Reader) error {
	target, err := selectDevice(ctx, app, reader)
	if err != nil {
		return err
	}

	progress := make(chan transfer.UploadProgress, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		printProgress(files.ToDtoMap(), progress)
	}()

	session := transfer.NewSendSession(app.device, target, files)
	uploadErr := session.Upload(ctx, app.state, progress)
	close(progress)
	<-done
	return uploadErr
}

// selectDevice scans until peers answer, then prompts for one of them.
func selectDevice(ctx context.Context, app *appContext, reader *bufio.Reader) (types.Device, error) {
	var devices []types.Device
	if flagHTTPScan {
		fmt.Println("Scanning over HTTP...")
		devices = boardcast.ScanHTTP(ctx, app.device, app.cfg.HTTPPort)
	} else {
		fmt.Println("Scanning...")
		scanned, err := app.scanner.Scan(ctx)
		if err != nil {
			return types.Device{}, err
		}
		devices = scanned
	}
	for _, device := range devices {
		share.SetDevice(device)
	}
	if len(devices) == 0 {
		return types.Device{}, errors.New("no devices found")
	}

	for i, device := range devices {
		fmt.Printf("  [%d] %s (%s) %s://%s:%d\n",
			i+1, device.Alias, device.DeviceType, device.Protocol(), device.IP, device.Port)
	}
	for {
		fmt.Printf("Select device [1-%d]: ", len(devices))
		line, err := reader.ReadString('\n')
		if err != nil {
			return types.Device{}, err
		}
		index, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && index >= 1 && index <= len(devices) {
			return devices[index-1], nil
		}
	}
}

func printQueuedFiles(files *transfer.SendingFiles) {
	fmt.Printf("Sending %d files:\n", files.Len())
	for _, file := range files.All() {
		fmt.Printf("  %s (%s)\n", file.File.FileName, formatSize(file.File.Size))
	}
}

// installSendSignalHandler cancels an in-flight send on interrupt and tells
// the receiver before exiting.
func installSendSignalHandler(state *transfer.ServerState) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		state.Lock()
		session := state.SendSession
		state.SendSession = nil
		state.Unlock()
		if session != nil {
			if err := session.CancelBySender(); err != nil {
				tool.DefaultLogger.Errorf("Failed to cancel session: %v", err)
			}
		}
		os.Exit(0)
	}()
}
