package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/menta2k/rect-transformer/pkg/node"
)

// maxPacketLine bounds one JSON-lines packet.
const maxPacketLine = 1 << 20

func newApplyCommand(loadConfig configLoader) *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Transform a JSON-lines stream of packets",
		Long: `Reads one packet per line, e.g.
  {"timestamp":0,"norm_rect":{"x_center":0.5,"y_center":0.5,"width":0.2,"height":0.1,"rotation":0},"image_size":{"width":640,"height":480}}
and writes one transformed packet per line. Packets without a rectangle produce no output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			contract, err := cfg.Contract()
			if err != nil {
				return err
			}

			logger := loggerFromContext(cmd.Context())
			metrics := node.NewMetrics("")
			n, err := node.New(contract, cfg.Transform, node.WithLogger(logger), node.WithMetrics(metrics))
			if err != nil {
				return err
			}

			r, closeIn, err := openInput(inPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeIn()

			w, closeOut, err := openOutput(outPath, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			runErr := applyStream(cmd.Context(), n, r, w)
			if err := closeOut(); err != nil && runErr == nil {
				runErr = fmt.Errorf("failed to close output: %w", err)
			}
			logPacketCounts(logger, metrics)
			return runErr
		},
	}

	cmd.Flags().StringVarP(&inPath, "in", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")

	return cmd
}

// applyStream decodes packets from r, runs them through n and encodes the
// results to w.
func applyStream(ctx context.Context, n *node.Node, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan node.Packet)
	out := make(chan node.Packet)

	readErr := make(chan error, 1)
	go func() {
		defer close(in)
		readErr <- readPackets(ctx, r, in)
	}()

	runErr := make(chan error, 1)
	go func() {
		defer close(out)
		runErr <- n.Run(ctx, in, out)
	}()

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	var writeErr error
	for packet := range out {
		if writeErr != nil {
			continue
		}
		if err := enc.Encode(packet); err != nil {
			writeErr = fmt.Errorf("failed to write packet %d: %w", packet.Timestamp, err)
			cancel()
		}
	}
	if writeErr == nil {
		if err := bw.Flush(); err != nil {
			writeErr = fmt.Errorf("failed to flush output: %w", err)
		}
	}

	// Run only returns nil once in is closed, so the reader is done. On
	// error the reader may still be blocked on r and is left behind.
	if err := <-runErr; err != nil {
		if writeErr != nil {
			return writeErr
		}
		return err
	}
	if err := <-readErr; err != nil {
		return err
	}
	return writeErr
}

func readPackets(ctx context.Context, r io.Reader, in chan<- node.Packet) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxPacketLine)

	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var packet node.Packet
		if err := json.Unmarshal(scanner.Bytes(), &packet); err != nil {
			return fmt.Errorf("failed to decode packet on line %d: %w", line, err)
		}
		select {
		case in <- packet:
		case <-ctx.Done():
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read packets: %w", err)
	}
	return nil
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output %s: %w", path, err)
	}
	return f, f.Close, nil
}

// logPacketCounts logs the node's packet counters.
func logPacketCounts(logger *log.Logger, metrics *node.Metrics) {
	families, err := metrics.Registry().Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", "err", err)
		return
	}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			fields := []any{"value", m.GetCounter().GetValue()}
			for _, label := range m.GetLabel() {
				fields = append(fields, label.GetName(), label.GetValue())
			}
			logger.Info(family.GetName(), fields...)
		}
	}
}
