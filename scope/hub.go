package scope

import (
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultOutBufferSize = 10

// hub distributes the frames to all subscribed streams. A stream that cannot keep up
// is closed and removed.
type hub struct {
	outBufferSize int
	in            chan *structpb.Struct
	register      chan chan *structpb.Struct
	unregister    chan chan *structpb.Struct
	out           []chan *structpb.Struct
	shutdown      chan struct{}
	stopped       chan struct{}
}

func newHub(outBufferSize int) *hub {
	return &hub{
		outBufferSize: outBufferSize,
		in:            make(chan *structpb.Struct),
		register:      make(chan chan *structpb.Struct),
		unregister:    make(chan chan *structpb.Struct),
		shutdown:      make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

func (h *hub) run() {
	defer close(h.stopped)

	for {
		select {
		case <-h.shutdown:
			for _, out := range h.out {
				close(out)
			}
			h.out = nil
			return
		case out := <-h.register:
			h.out = append(h.out, out)
		case out := <-h.unregister:
			h.removeStream(out)
		case frame := <-h.in:
			h.sendFrameToStreams(frame)
		}
	}
}

func (h *hub) removeStream(stream chan *structpb.Struct) {
	for i, out := range h.out {
		if out != stream {
			continue
		}
		close(out)
		h.out[i] = h.out[len(h.out)-1]
		h.out = h.out[:len(h.out)-1]
		return
	}
}

func (h *hub) sendFrameToStreams(frame *structpb.Struct) {
	kept := h.out[:0]
	for _, out := range h.out {
		select {
		case out <- frame:
			kept = append(kept, out)
		default:
			close(out)
		}
	}
	h.out = kept
}

// Subscribe returns a new stream of frames. The stream is closed when the hub shuts down.
func (h *hub) Subscribe() chan *structpb.Struct {
	result := make(chan *structpb.Struct, h.outBufferSize)
	select {
	case h.register <- result:
	case <-h.stopped:
		close(result)
	}
	return result
}

// Unsubscribe removes and closes the given stream, if it is still registered.
func (h *hub) Unsubscribe(stream chan *structpb.Struct) {
	select {
	case h.unregister <- stream:
	case <-h.stopped:
	}
}

func (h *hub) Send(frame *structpb.Struct) {
	select {
	case h.in <- frame:
	case <-h.stopped:
	}
}

func (h *hub) Close() {
	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}
	<-h.stopped
}
