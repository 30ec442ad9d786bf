package httpadapter

import (
	"fmt"
	"net/http"
)

const sseDoneFrame = "data: [DONE]\n\n"

// sseStream writes chat fragments as server-sent events. Headers go out
// lazily on the first frame so gate rejections can still answer with a
// plain JSON status.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}
	return &sseStream{w: w, flusher: flusher}, nil
}

func (s *sseStream) Started() bool {
	return s.started
}

func (s *sseStream) WriteFragment(fragment string) error {
	if err := s.start(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", fragment); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError emits the in-stream error frame used once fragments are
// already on the wire and the HTTP status can no longer change.
func (s *sseStream) WriteError(message string) error {
	if err := s.start(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: Error: %s\n\n", message); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) WriteDone() error {
	if err := s.start(); err != nil {
		return err
	}
	if _, err := fmt.Fprint(s.w, sseDoneFrame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) start() error {
	if s.started {
		return nil
	}
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
	return nil
}
