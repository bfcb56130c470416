package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/nekoha/localsend-cli/share"
	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/transfer"
	"github.com/nekoha/localsend-cli/types"
)

var (
	flagDestination string
	flagQuickSave   bool
	flagQR          bool
)

var receiveCmd = &cobra.Command{
	Use:     "receive",
	Aliases: []string{"r"},
	Short:   "Wait for incoming files",
	Long: `Receive announces this device on the network and waits for a peer
to offer files. Each offer is shown for confirmation unless --quick-save
accepts everything automatically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReceive()
	},
}

func init() {
	receiveCmd.Flags().StringVar(&flagDestination, "dest", "", "file save destination path (env LOCALSEND_DESTINATION)")
	receiveCmd.Flags().BoolVar(&flagQuickSave, "quick-save", false, "save all files without asking")
	receiveCmd.Flags().BoolVar(&flagQR, "qr", false, "print a QR code with this device's address")
	rootCmd.AddCommand(receiveCmd)
}

func runReceive() error {
	destination := firstOf(flagDestination, os.Getenv("LOCALSEND_DESTINATION"), ".")
	app, err := setup(types.Settings{
		Destination: destination,
		QuickSave:   flagQuickSave,
	})
	if err != nil {
		return err
	}
	defer app.scanner.Close()
	app.startServer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go app.scanner.AnnounceLoop(ctx)
	go func() {
		if err := app.scanner.Listen(ctx, share.SetDevice); err != nil && ctx.Err() == nil {
			tool.DefaultLogger.Errorf("Multicast listener stopped: %v", err)
		}
	}()
	installReceiveSignalHandler(app.state, cancel)

	fmt.Printf("Receiving as %q into %s\n", app.device.Alias, destination)
	if flagQR {
		printAddressQR(app.device)
	}

	if flagQuickSave {
		tool.DefaultLogger.Info("Quick save enabled, accepting everything")
		select {}
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Println("Waiting for files...")
		msg, ok := <-app.state.ServerTx
		if !ok {
			return nil
		}
		handleOffer(app.state, msg, reader)
		fmt.Println()
	}
}

// handleOffer shows an incoming offer and answers it through the state
// channels. Accepting takes all offered files.
func handleOffer(state *transfer.ServerState, msg transfer.ServerMessage, reader *bufio.Reader) {
	fmt.Printf("%s (%s) wants to send %d files:\n", msg.Sender.Alias, msg.Sender.IP, len(msg.Files))
	total := int64(0)
	for _, file := range msg.Files {
		fmt.Printf("  %s (%s)\n", file.FileName, formatSize(file.Size))
		total += file.Size
	}
	fmt.Printf("Total: %s\n", formatSize(total))

	if !askYesNo(reader, "Accept?") {
		state.ClientRx <- transfer.ClientMessage{Declined: true}
		return
	}

	progress := make(chan transfer.UploadProgress, 100)
	state.ClientRx <- transfer.ClientMessage{Files: msg.Files, Progress: progress}

	byID := make(map[string]types.FileDto, len(msg.Files))
	for _, file := range msg.Files {
		byID[file.ID] = file
	}
	// The channel closes when every accepted file reached a terminal state.
	printProgress(byID, progress)
}

// printAddressQR renders the device address so mobile clients can connect
// without scanning.
func printAddressQR(device *types.Device) {
	content := fmt.Sprintf("%s://%s:%d", device.Protocol(), device.IP, device.Port)
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		tool.DefaultLogger.Errorf("Failed to build QR code: %v", err)
		return
	}
	fmt.Println(qr.ToSmallString(false))
	fmt.Println(content)
}

func installReceiveSignalHandler(state *transfer.ServerState, cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
		transfer.DestroyReceiveSession(state)
		// Give the cancel notification a moment to flush.
		time.Sleep(100 * time.Millisecond)
		os.Exit(0)
	}()
}
