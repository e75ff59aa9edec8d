package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/blockkit/alloc"
	"github.com/joshuapare/blockkit/anchor"
	"github.com/joshuapare/blockkit/block"
	"github.com/joshuapare/blockkit/engine"
)

var (
	createBlockSize int
	createForce     bool
)

func init() {
	cmd := newCreateCmd()
	cmd.Flags().IntVar(&createBlockSize, "block-size", 4096, "Block size in bytes (power of two)")
	cmd.Flags().BoolVarP(&createForce, "force", "f", false, "Overwrite an existing file")
	rootCmd.AddCommand(cmd)
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <store>",
		Short: "Create an empty store file",
		Long: `The create command creates a new store file and initializes its root
block (block 0) with an empty node allocator anchor.

Example:
  blockctl create data.blk
  blockctl create data.blk --block-size 512`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args[0])
		},
	}
}

func runCreate(path string) error {
	if _, err := os.Stat(path); err == nil && !createForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err == nil {
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	printVerbose("Creating store: %s (block size %d)\n", path, createBlockSize)

	e, err := engine.OpenFile(path, createBlockSize)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer e.Close()

	// Reserve block 0 as the root block and write the allocator anchor.
	if err := e.Grow(1); err != nil {
		return err
	}
	root, err := engine.PinBlock(e, block.New(0), false)
	if err != nil {
		return err
	}
	for i := range root.Bytes() {
		root.Bytes()[i] = 0
	}
	alloc.InitAnchor(anchor.New(root, 0))
	root.Release()

	if err := e.FlushAll(); err != nil {
		return err
	}

	printInfo("Created %s: %d blocks of %d bytes\n", path, e.Size(), e.BlockSize())
	return nil
}
