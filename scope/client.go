package scope

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client allows to connect to a scope server and receive frames.
type Client struct {
	address string

	conn *grpc.ClientConn
}

// NewClient creates a new client for the given address.
func NewClient(address string) *Client {
	return &Client{
		address: address,
	}
}

// Open the connection to the scope server.
func (c *Client) Open() error {
	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, err := grpc.NewClient(c.address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("cannot connect to scope server: %w", err)
	}
	c.conn = conn

	return nil
}

// Close the connection to the scope server.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// GetFrames provides a set of channels to receive frames from the scope server. Both channels
// are closed when the stream ends.
func (c *Client) GetFrames(ctx context.Context) (chan *TimeFrame, chan *SpectralFrame, error) {
	if c.conn == nil {
		return nil, nil, fmt.Errorf("not connected")
	}
	stream, err := c.conn.NewStream(ctx, frameStreamDesc(), getFramesMethod)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open frame stream: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, nil, fmt.Errorf("cannot request frames: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, nil, fmt.Errorf("cannot request frames: %w", err)
	}

	timeFrames := make(chan *TimeFrame, 1)
	spectralFrames := make(chan *SpectralFrame, 1)
	go func() {
		defer close(timeFrames)
		defer close(spectralFrames)
		for {
			rawFrame := new(structpb.Struct)
			err := stream.RecvMsg(rawFrame)
			if err != nil {
				return
			}

			frame, err := decodeFrame(rawFrame)
			if err != nil {
				log.Warnf("invalid frame: %v", err)
				continue
			}
			switch frame := frame.(type) {
			case *TimeFrame:
				timeFrames <- frame
			case *SpectralFrame:
				spectralFrames <- frame
			}
		}
	}()

	return timeFrames, spectralFrames, nil
}
