package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"qrxfer/internal/progressui"
	"qrxfer/internal/sender"
	"qrxfer/pkg/channel"
	"qrxfer/pkg/channel/socket"
	"qrxfer/pkg/chunk"
	"qrxfer/pkg/logger"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
)

var (
	sendFile        string
	sendChunkSize   uint64
	sendChannelKind string
	sendListenAddr  string
	sendInteractive bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Advertise and transmit a file over the visual channel",
	Run: func(cmd *cobra.Command, args []string) {
		if sendFile == "" {
			logger.Sugar.Fatal("send: --file is required")
		}

		info, err := os.Stat(sendFile)
		if err != nil {
			logger.Sugar.Fatalf("send: %v", err)
		}

		f, err := os.Open(sendFile)
		if err != nil {
			logger.Sugar.Fatalf("send: %v", err)
		}
		defer f.Close()

		c, err := chunk.NewChunker(f, filepath.Base(sendFile), "application/octet-stream", uint64(info.Size()), sendChunkSize)
		if err != nil {
			logger.Sugar.Fatalf("send: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go watchInterrupt(cancel)

		adapter, err := dialSendAdapter(ctx)
		if err != nil {
			logger.Sugar.Fatalf("send: %v", err)
		}

		s := sender.New(adapter, c)
		renderer := progressui.NewRenderer(s.Tracker(), true)
		go renderer.Start()

		if err := s.Start(ctx); err != nil {
			logger.Sugar.Fatalf("send: %v", err)
		}

		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		if sendInteractive {
			fmt.Println("qrxfer send — interactive shell")
			fmt.Println("Type 'help' for commands.")
			prompt.New(
				func(in string) { sendExecutor(in, s) },
				sendCompleter,
				prompt.OptionPrefix("send> "),
				prompt.OptionTitle("qrxfer send"),
			).Run()
			return
		}

		<-s.Done()
		renderer.StopAndFinal()
	},
}

func dialSendAdapter(ctx context.Context) (channel.Adapter, error) {
	switch sendChannelKind {
	case "socket":
		logger.Sugar.Infof("[send] waiting for receiver on %s", sendListenAddr)
		return socket.Listen(ctx, sendListenAddr)
	default:
		return nil, fmt.Errorf("send: unsupported --channel %q outside of loopback demos; use 'demo' for loopback", sendChannelKind)
	}
}

func watchInterrupt(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	<-ch
	cancel()
}

func sendExecutor(in string, s *sender.Sender) {
	in = strings.TrimSpace(in)
	blocks := strings.Fields(in)
	if len(blocks) == 0 {
		return
	}

	switch blocks[0] {
	case "exit", "quit":
		fmt.Println("Stopping sender...")
		s.Stop()
		os.Exit(0)
	case "status":
		st := s.Status()
		fmt.Printf("state=%s chunk=%d/%d\n", st.State, st.ChunkIndex, st.TotalChunks)
	case "cancel":
		s.Stop()
		fmt.Println("Transfer canceled.")
	case "help":
		fmt.Println("Available commands:")
		fmt.Println("  status   - Show sender status")
		fmt.Println("  cancel   - Cancel the transfer")
		fmt.Println("  exit     - Stop sender and exit")
	default:
		fmt.Println("Unknown command: " + blocks[0])
	}
}

func sendCompleter(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "status", Description: "Show sender status"},
		{Text: "cancel", Description: "Cancel the transfer"},
		{Text: "exit", Description: "Stop sender and exit"},
		{Text: "help", Description: "Show help"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "Path to the file to send")
	sendCmd.Flags().Uint64VarP(&sendChunkSize, "chunk-size", "c", 2048, "Chunk size in bytes, frozen once the transfer starts")
	sendCmd.Flags().StringVar(&sendChannelKind, "channel", "socket", "Channel adapter: socket (loopback is only available via 'demo')")
	sendCmd.Flags().StringVarP(&sendListenAddr, "listen", "l", "127.0.0.1:9901", "Address to listen on for --channel socket")
	sendCmd.Flags().BoolVarP(&sendInteractive, "interactive", "i", false, "Start in interactive mode")
}
