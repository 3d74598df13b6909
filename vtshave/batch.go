package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/mapbox/vtshaver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type batchResult struct {
	mu       sync.Mutex
	shaved   int
	failed   int
	inBytes  int64
	outBytes int64
}

func (r *batchResult) record(in, out int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.shaved++
	r.inBytes += int64(in)
	r.outBytes += int64(out)
}

func newBatchCmd() *cobra.Command {
	var (
		table       tableFlags
		zoom        zoomFlags
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch SRCDIR DSTDIR",
		Short: "Shave every tile under a directory",
		Long: `Shave every file under SRCDIR at the same zoom and write the result to the
same relative path under DSTDIR. Compressed tiles stay gzip compressed.`,
		Example: `  vtshave batch --style style.json --zoom 14 tiles/14 shaved/14`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcDir, dstDir := args[0], args[1]

			filters, err := table.load()
			if err != nil {
				return err
			}
			opts := zoom.options(cmd, filters)

			pool, err := vtshaver.NewPool(concurrency)
			if err != nil {
				return err
			}

			var result batchResult
			walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				rel, err := filepath.Rel(srcDir, path)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				tileOpts := opts
				if vtshaver.IsCompressed(data) {
					tileOpts.Compress = &vtshaver.Compression{Type: vtshaver.CompressGzip}
				}
				dst := filepath.Join(dstDir, rel)

				return pool.Shave(data, tileOpts, func(out []byte, err error) {
					if err == nil {
						err = writeTile(dst, out)
					}
					if err != nil {
						zap.L().Error("failed to shave tile", zap.String("path", path), zap.Error(err))
					} else {
						zap.L().Debug("shaved tile", zap.String("path", path), zap.Int("in", len(data)), zap.Int("out", len(out)))
					}
					result.record(len(data), len(out), err)
				})
			})
			if err := pool.Release(); err != nil && walkErr == nil {
				walkErr = err
			}
			if walkErr != nil {
				return walkErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "shaved %d tiles (%d bytes to %d bytes), %d failed\n",
				result.shaved, result.inBytes, result.outBytes, result.failed)
			if result.failed > 0 {
				return fmt.Errorf("%d tiles failed to shave", result.failed)
			}
			return nil
		},
	}

	table.register(cmd)
	zoom.register(cmd)
	cmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of tiles shaved at once")
	return cmd
}

func writeTile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
