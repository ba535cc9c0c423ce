package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"qrxfer/internal/progressui"
	"qrxfer/internal/receiver"
	"qrxfer/internal/sender"
	"qrxfer/pkg/channel"
	"qrxfer/pkg/chunk"
	"qrxfer/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	demoFile      string
	demoOutDir    string
	demoChunkSize uint64
	demoSample    time.Duration
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a full transfer in one process over a simulated visual channel",
	Run: func(cmd *cobra.Command, args []string) {
		if demoFile == "" {
			logger.Sugar.Fatal("demo: --file is required")
		}

		info, err := os.Stat(demoFile)
		if err != nil {
			logger.Sugar.Fatalf("demo: %v", err)
		}
		f, err := os.Open(demoFile)
		if err != nil {
			logger.Sugar.Fatalf("demo: %v", err)
		}
		defer f.Close()

		c, err := chunk.NewChunker(f, filepath.Base(demoFile), "application/octet-stream", uint64(info.Size()), demoChunkSize)
		if err != nil {
			logger.Sugar.Fatalf("demo: %v", err)
		}

		senderSide, receiverSide := channel.NewLoopbackPair(demoSample)

		s := sender.New(senderSide, c)
		r := receiver.New(receiverSide, receiver.DiskDelivery{Dir: demoOutDir})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		senderRenderer := progressui.NewRenderer(s.Tracker(), true)
		go senderRenderer.Start()

		go r.Run(ctx)
		if err := s.Start(ctx); err != nil {
			logger.Sugar.Fatalf("demo: %v", err)
		}
		go s.Run(ctx)

		select {
		case <-r.Done():
		case <-ctx.Done():
			logger.Sugar.Fatal("demo: transfer did not finish before the deadline")
		}
		senderRenderer.StopAndFinal()

		if err := r.Err(); err != nil {
			logger.Sugar.Fatalf("demo: %v", err)
		}
		logger.Sugar.Infof("demo: delivered %s into %s", filepath.Base(demoFile), demoOutDir)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().StringVarP(&demoFile, "file", "f", "", "Path to the file to transfer")
	demoCmd.Flags().StringVarP(&demoOutDir, "out", "o", ".", "Directory to write the received file into")
	demoCmd.Flags().Uint64VarP(&demoChunkSize, "chunk-size", "c", 2048, "Chunk size in bytes")
	demoCmd.Flags().DurationVar(&demoSample, "sample-interval", 100*time.Millisecond, "Simulated camera re-sampling interval")
}
