// Package node hosts a Transformer as a streaming pipeline node.
//
// A node is wired to exactly one rectangle input, either RECT (pixels) or
// NORM_RECT (normalized, which also needs IMAGE_SIZE). Every Packet carries
// at most one rectangle; a packet without one produces no output, and a
// produced packet keeps the input timestamp.
package node

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/menta2k/rect-transformer/pkg/transform"
	"github.com/menta2k/rect-transformer/pkg/types"
)

// Input tags accepted by ParseContract.
const (
	TagRect      = "RECT"
	TagNormRect  = "NORM_RECT"
	TagImageSize = "IMAGE_SIZE"
)

var (
	// ErrInputKind is returned unless exactly one of RECT and NORM_RECT is wired.
	ErrInputKind = errors.New("exactly one of RECT or NORM_RECT input is required")
	// ErrMissingImageSize is returned when NORM_RECT is wired without IMAGE_SIZE.
	ErrMissingImageSize = errors.New("NORM_RECT input requires IMAGE_SIZE input")
	// ErrUnknownTag is returned by ParseContract for an unrecognized input tag.
	ErrUnknownTag = errors.New("unknown input tag")
)

// Contract lists the inputs wired to a node.
type Contract struct {
	Rect      bool
	NormRect  bool
	ImageSize bool
}

// ParseContract builds a Contract from input tags such as "NORM_RECT".
// Tags are case-insensitive and may repeat.
func ParseContract(tags []string) (Contract, error) {
	var c Contract
	for _, tag := range tags {
		switch strings.ToUpper(strings.TrimSpace(tag)) {
		case TagRect:
			c.Rect = true
		case TagNormRect:
			c.NormRect = true
		case TagImageSize:
			c.ImageSize = true
		default:
			return Contract{}, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
		}
	}
	return c, nil
}

// Validate checks the wiring rules.
func (c Contract) Validate() error {
	if c.Rect == c.NormRect {
		return ErrInputKind
	}
	if c.NormRect && !c.ImageSize {
		return ErrMissingImageSize
	}
	return nil
}

// Kind returns the metric label for the wired rectangle input.
func (c Contract) Kind() string {
	if c.NormRect {
		return "normalized"
	}
	return "absolute"
}

// Packet is one timestep of node input or output.
type Packet struct {
	Timestamp int64                 `json:"timestamp"`
	Rect      *types.Rect           `json:"rect,omitempty"`
	NormRect  *types.NormalizedRect `json:"norm_rect,omitempty"`
	ImageSize *types.ImageSize      `json:"image_size,omitempty"`
}

// Node transforms the rectangle of each packet.
type Node struct {
	contract    Contract
	transformer *transform.Transformer
	logger      *log.Logger
	metrics     *Metrics
}

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the logger used for setup and skipped packets.
func WithLogger(l *log.Logger) Option {
	return func(n *Node) { n.logger = l }
}

// WithMetrics records packet counts on m.
func WithMetrics(m *Metrics) Option {
	return func(n *Node) { n.metrics = m }
}

// New validates the wiring and the transform options and creates a Node.
func New(contract Contract, opts transform.Options, options ...Option) (*Node, error) {
	if err := contract.Validate(); err != nil {
		return nil, fmt.Errorf("invalid node inputs: %w", err)
	}

	transformer, err := transform.NewFromOptions(opts)
	if err != nil {
		return nil, err
	}

	n := &Node{
		contract:    contract,
		transformer: transformer,
		logger:      log.Default(),
	}
	for _, o := range options {
		o(n)
	}

	cfg := transformer.Config()
	n.logger.Debug("rect transform node ready",
		"input", contract.Kind(),
		"shift_x", cfg.ShiftX,
		"shift_y", cfg.ShiftY,
		"rotation", cfg.Rotation,
		"square", cfg.Square,
		"scale_x", cfg.ScaleX,
		"scale_y", cfg.ScaleY)

	return n, nil
}

// Contract returns the node's input wiring.
func (n *Node) Contract() Contract {
	return n.contract
}

// Process transforms one packet. It reports false when the packet yields no output.
func (n *Node) Process(in Packet) (Packet, bool) {
	out := Packet{Timestamp: in.Timestamp}

	if n.contract.Rect {
		if in.Rect == nil {
			n.record(resultSkipped)
			return Packet{}, false
		}
		rect := n.transformer.Absolute(*in.Rect)
		out.Rect = &rect
		n.record(resultEmitted)
		return out, true
	}

	if in.NormRect == nil {
		n.record(resultSkipped)
		return Packet{}, false
	}
	if in.ImageSize == nil {
		n.logger.Warn("normalized rect without image size, skipping", "ts", in.Timestamp)
		n.record(resultSkipped)
		return Packet{}, false
	}
	if !in.ImageSize.Valid() {
		n.logger.Warn("image size must be positive, skipping", "ts", in.Timestamp,
			"width", in.ImageSize.Width, "height", in.ImageSize.Height)
		n.record(resultSkipped)
		return Packet{}, false
	}
	rect := n.transformer.Normalized(*in.NormRect, *in.ImageSize)
	out.NormRect = &rect
	n.record(resultEmitted)
	return out, true
}

// Run processes packets from in until it is closed or ctx is done.
// Output packets are sent to out in input order; out is not closed.
func (n *Node) Run(ctx context.Context, in <-chan Packet, out chan<- Packet) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case packet, ok := <-in:
			if !ok {
				return nil
			}
			result, emit := n.Process(packet)
			if !emit {
				continue
			}
			select {
			case out <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (n *Node) record(result string) {
	if n.metrics == nil {
		return
	}
	n.metrics.packets.WithLabelValues(n.contract.Kind(), result).Inc()
}
