package provider

import "io"

// sliceStream replays a fixed set of fragments. Used for canned replies
// (banned characters, error apologies) and by tests.
type sliceStream struct {
	fragments []string
	pos       int
}

// NewSliceStream returns a Stream over the given fragments.
func NewSliceStream(fragments ...string) Stream {
	return &sliceStream{fragments: fragments}
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

// chanStream adapts a producer goroutine's channel to the Stream contract.
// The producer closes frags when done and sets err (before closing) on
// failure.
type chanStream struct {
	frags <-chan string
	errc  <-chan error
}

// NewChanStream wraps fragment and error channels as a Stream. After frags is
// closed, Recv drains errc once and then reports io.EOF.
func NewChanStream(frags <-chan string, errc <-chan error) Stream {
	return &chanStream{frags: frags, errc: errc}
}

func (s *chanStream) Recv() (string, error) {
	f, ok := <-s.frags
	if !ok {
		select {
		case err, open := <-s.errc:
			if open && err != nil {
				return "", err
			}
		default:
		}
		return "", io.EOF
	}
	return f, nil
}
