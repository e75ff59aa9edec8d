package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var infoBlockSize int

func init() {
	cmd := newInfoCmd()
	cmd.Flags().IntVar(&infoBlockSize, "block-size", 4096, "Block size in bytes (power of two)")
	rootCmd.AddCommand(cmd)
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <store>",
		Short: "Report basic store metadata",
		Long: `The info command reports the file size and block count of a store.

Example:
  blockctl info data.blk
  blockctl info data.blk --block-size 512 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
}

type storeInfo struct {
	Path      string `json:"path"`
	FileSize  int64  `json:"fileSize"`
	BlockSize int    `json:"blockSize"`
	Blocks    uint64 `json:"blocks"`
	Torn      bool   `json:"torn"`
}

func runInfo(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat store: %w", err)
	}

	info := storeInfo{
		Path:      path,
		FileSize:  st.Size(),
		BlockSize: infoBlockSize,
		Blocks:    uint64(st.Size()) / uint64(infoBlockSize),
		Torn:      st.Size()%int64(infoBlockSize) != 0,
	}

	if jsonOut {
		return printJSON(info)
	}

	printInfo("Store: %s\n", info.Path)
	printInfo("  file size:  %d bytes\n", info.FileSize)
	printInfo("  block size: %d bytes\n", info.BlockSize)
	printInfo("  blocks:     %d\n", info.Blocks)
	if info.Torn {
		printInfo("  WARNING: file size is not a multiple of the block size\n")
	}
	return nil
}
