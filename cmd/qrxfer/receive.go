package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"qrxfer/internal/progressui"
	"qrxfer/internal/receiver"
	"qrxfer/pkg/channel"
	"qrxfer/pkg/channel/socket"
	"qrxfer/pkg/logger"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
)

var (
	receiveOutDir      string
	receiveChannelKind string
	receiveConnectAddr string
	receiveInteractive bool
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Observe the visual channel and reassemble an incoming file",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go watchInterrupt(cancel)

		adapter, err := dialReceiveAdapter(ctx)
		if err != nil {
			logger.Sugar.Fatalf("receive: %v", err)
		}

		r := receiver.New(adapter, receiver.DiskDelivery{Dir: receiveOutDir})

		done := make(chan error, 1)
		go func() { done <- r.Run(ctx) }()

		var renderer *progressui.Renderer
		if receiveInteractive {
			fmt.Println("qrxfer receive — interactive shell")
			fmt.Println("Type 'help' for commands.")
			prompt.New(
				func(in string) { receiveExecutor(in, r) },
				receiveCompleter,
				prompt.OptionPrefix("receive> "),
				prompt.OptionTitle("qrxfer receive"),
			).Run()
			return
		}

		<-r.Done()
		if tracker := r.Tracker(); tracker != nil {
			renderer = progressui.NewRenderer(tracker, true)
			renderer.StopAndFinal()
		}
		if err := r.Err(); err != nil {
			logger.Sugar.Fatalf("receive: %v", err)
		}
	},
}

func dialReceiveAdapter(ctx context.Context) (channel.Adapter, error) {
	switch receiveChannelKind {
	case "socket":
		logger.Sugar.Infof("[receive] connecting to sender at %s", receiveConnectAddr)
		return socket.Dial(ctx, receiveConnectAddr)
	default:
		return nil, fmt.Errorf("receive: unsupported --channel %q outside of loopback demos; use 'demo' for loopback", receiveChannelKind)
	}
}

func receiveExecutor(in string, r *receiver.Receiver) {
	in = strings.TrimSpace(in)
	blocks := strings.Fields(in)
	if len(blocks) == 0 {
		return
	}

	switch blocks[0] {
	case "exit", "quit":
		fmt.Println("Stopping receiver...")
		r.Stop()
		os.Exit(0)
	case "status":
		st := r.Status()
		fmt.Printf("state=%s committed=%d/%d\n", st.State, st.CommittedCount, st.TotalChunks)
	case "cancel":
		r.Stop()
		fmt.Println("Transfer canceled.")
	case "help":
		fmt.Println("Available commands:")
		fmt.Println("  status   - Show receiver status")
		fmt.Println("  cancel   - Cancel the transfer")
		fmt.Println("  exit     - Stop receiver and exit")
	default:
		fmt.Println("Unknown command: " + blocks[0])
	}
}

func receiveCompleter(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "status", Description: "Show receiver status"},
		{Text: "cancel", Description: "Cancel the transfer"},
		{Text: "exit", Description: "Stop receiver and exit"},
		{Text: "help", Description: "Show help"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	receiveCmd.Flags().StringVarP(&receiveOutDir, "out", "o", ".", "Directory to write the received file into")
	receiveCmd.Flags().StringVar(&receiveChannelKind, "channel", "socket", "Channel adapter: socket (loopback is only available via 'demo')")
	receiveCmd.Flags().StringVarP(&receiveConnectAddr, "connect", "c", "127.0.0.1:9901", "Address to connect to for --channel socket")
	receiveCmd.Flags().BoolVarP(&receiveInteractive, "interactive", "i", false, "Start in interactive mode")
}
