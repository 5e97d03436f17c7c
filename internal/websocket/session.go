package websocket

import (
	"encoding/json"
	"errors"

	"github.com/golang/glog"
	"golang.org/x/time/rate"

	"github.com/imuhira/listings/internal/viewstate"
)

// SessionLimits bounds how fast a client may send navigation commands.
// A zero Rate disables limiting.
type SessionLimits struct {
	Rate  float64
	Burst int
}

func (l SessionLimits) limiter() *rate.Limiter {
	if l.Rate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := l.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(l.Rate), burst)
}

// Session is one rendered listing view bound to a WebSocket client. It owns
// the view's controller and pushes a view.state message after every change.
type Session struct {
	client     *Client
	controller *viewstate.Controller
	limiter    *rate.Limiter
}

// NewSession mounts a view for client on source. The initial empty view is
// queued right away so the frontend can show its loading state.
func NewSession(client *Client, source viewstate.Source, limits SessionLimits) *Session {
	s := &Session{
		client:  client,
		limiter: limits.limiter(),
	}
	s.controller = viewstate.New(source, s.render)
	return s
}

// View returns the session's current view.
func (s *Session) View() viewstate.View {
	return s.controller.View()
}

// Close unmounts the view and releases its live query.
func (s *Session) Close() {
	s.controller.Close()
}

// Handle decodes and executes one client command. Malformed or rejected
// commands are answered with an error message; the connection stays open.
func (s *Session) Handle(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.sendError(ErrCodeBadMessage, "Message is not valid JSON", "")
		return
	}

	if msg.Type == TypePing {
		s.send(NewMessage(TypePong, nil))
		return
	}

	if !s.limiter.Allow() {
		s.sendError(ErrCodeRateLimited, "Too many commands, slow down", string(msg.Type))
		return
	}

	glog.V(2).Infof("[session] command %s", msg.Type)

	switch msg.Type {
	case TypeSetFilter:
		var payload SetFilterPayload
		if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &payload) != nil {
			s.sendError(ErrCodeBadMessage, "set_filter needs a payload with a type", string(msg.Type))
			return
		}
		if err := s.controller.SetFilter(payload.Kind); err != nil {
			if errors.Is(err, viewstate.ErrInvalidKind) {
				s.sendError(ErrCodeInvalidFilter, "Listing type must be 'rent' or 'sale'", string(msg.Type))
				return
			}
			s.sendError(ErrCodeBadMessage, err.Error(), string(msg.Type))
		}
	case TypeNextImage:
		s.controller.NextImage()
	case TypePreviousImage:
		s.controller.PreviousImage()
	case TypeNextProperty:
		s.controller.NextProperty()
	case TypePreviousProperty:
		s.controller.PreviousProperty()
	default:
		s.sendError(ErrCodeUnknownType, "Unknown command type", string(msg.Type))
	}
}

// render is the controller's render hook; it runs under the controller lock
// and only queues, never blocks.
func (s *Session) render(v viewstate.View) {
	s.send(NewMessage(TypeViewState, v))
}

func (s *Session) sendError(code, message, originalType string) {
	s.send(NewMessage(TypeError, ErrorPayload{
		Code:         code,
		Message:      message,
		OriginalType: originalType,
	}))
}

func (s *Session) send(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		glog.Errorf("Error encoding WebSocket message: %v", err)
		return
	}
	if !s.client.Enqueue(data) {
		glog.V(1).Infof("[session] dropped %s message for closed or slow client", msg.Type)
	}
}
