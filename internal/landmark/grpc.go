package landmark

import (
	"context"
	"encoding/json"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// DetectMethod is the full RPC name served by the face mesh sidecar.
const DetectMethod = "/drowsyctl.landmark.v1.FaceMesh/Detect"

const maxMessageSize = 16 * 1024 * 1024

// DetectRequest carries one encoded frame to the sidecar.
type DetectRequest struct {
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  []byte `json:"image"`
}

// DetectResponse lists the meshes found, one per face.
type DetectResponse struct {
	Faces [][]MeshPoint `json:"faces"`
}

// JSONCodec marshals RPC messages as JSON so the sidecar needs no generated
// protobuf stubs.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return "json" }

// Client is a Detector backed by a face mesh sidecar over gRPC.
type Client struct {
	conn    *grpc.ClientConn
	addr    string
	timeout time.Duration
}

// Dial creates a client for the sidecar at addr. The connection is
// established lazily on the first call.
func Dial(addr string, timeout time.Duration, extra ...grpc.DialOption) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(JSONCodec{}),
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrInitFailed, err)
	}

	return &Client{conn: conn, addr: addr, timeout: timeout}, nil
}

// Detect sends the frame to the sidecar and maps the first face it returns.
func (c *Client) Detect(ctx context.Context, frame camera.Frame) (Landmarks, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &DetectRequest{
		Seq:    frame.Seq,
		Width:  frame.Width,
		Height: frame.Height,
		Image:  frame.Data,
	}
	var resp DetectResponse

	if err := c.conn.Invoke(ctx, DetectMethod, req, &resp); err != nil {
		return Landmarks{}, errors.New().Wrap(errors.ErrDetectionFailed, err)
	}

	if len(resp.Faces) == 0 {
		return Landmarks{}, nil
	}

	return FromMesh(resp.Faces[0], frame.Width, frame.Height), nil
}

// Addr returns the sidecar address.
func (c *Client) Addr() string {
	return c.addr
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
