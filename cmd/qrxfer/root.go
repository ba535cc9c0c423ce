package main

import (
	"os"

	"qrxfer/pkg/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qrxfer",
	Short: "QR visual-channel file transfer",
	Long:  `Transfers a file between two devices with no network link, by encoding protocol envelopes as QR images and recovering them via camera.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Sugar.Error(err)
		os.Exit(1)
	}
}
