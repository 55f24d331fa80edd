package responses

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

// EventStream writes server-sent events. It is owned by a single handler goroutine.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// OpenEventStream switches the response to text/event-stream. It fails when the
// underlying writer cannot flush, in which case nothing has been written yet.
func OpenEventStream(w http.ResponseWriter) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported")
	}
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &EventStream{w: w, flusher: flusher}, nil
}

// Send writes one event with a JSON payload and flushes it to the client.
func (s *EventStream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	s.seq++
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", s.seq)
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	fmt.Fprintf(&b, "data: %s\n\n", payload)
	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// SendError reports a failure on an already open stream using the error envelope.
func (s *EventStream) SendError(err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	msg := pkgerrors.MetadataFor(typed.Code()).PublicMessage
	if typed.Code() == pkgerrors.CodeValidation && typed.Message() != "" {
		msg = typed.Message()
	}
	return s.Send("error", map[string]string{"code": string(typed.Code()), "message": msg})
}
