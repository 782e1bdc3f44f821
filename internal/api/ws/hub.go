package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/relay/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/relay/internal/relay/host"
	"github.com/GriffinCanCode/relay/internal/shared/types"
)

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 1 << 20
)

var (
	// ErrNoSolver is returned when a challenge arrives with no solver connected
	ErrNoSolver = fmt.Errorf("%w: no solver connected", host.ErrChallengeUnavailable)

	// ErrSolverGone is returned when the solver disconnects before answering
	ErrSolverGone = errors.New("challenge solver disconnected")

	// ErrHubClosed is returned after Close
	ErrHubClosed = errors.New("challenge hub closed")
)

// SolverError carries the reason a solver gave for failing a challenge
type SolverError struct {
	Ticket  string
	Message string
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver failed ticket %s: %s", e.Ticket, e.Message)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Solvers run as local desktop shells or extensions
	},
}

type result struct {
	headers map[string]string
	err     error
}

type pending struct {
	solver *solver
	reply  chan result
}

type solver struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *solver) send(msg types.ChallengeMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

// Hub routes challenges to connected solvers. It implements host.Challenger.
type Hub struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	solvers []*solver // connection order; the newest receives challenges
	pending map[string]*pending
	closed  bool
}

// NewHub creates a hub. logger and metrics may be nil.
func NewHub(logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		pending: make(map[string]*pending),
	}
}

// Solvers returns the number of connected solvers
func (h *Hub) Solvers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.solvers)
}

// Resolve sends url to the newest solver and waits for its answer
func (h *Hub) Resolve(ctx context.Context, url string) (map[string]string, error) {
	ticket := uuid.NewString()
	p := &pending{reply: make(chan result, 1)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if len(h.solvers) == 0 {
		h.mu.Unlock()
		return nil, ErrNoSolver
	}
	p.solver = h.solvers[len(h.solvers)-1]
	h.pending[ticket] = p
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, ticket)
		h.mu.Unlock()
	}()

	err := p.solver.send(types.ChallengeMessage{
		Type:   types.ChallengeRequested,
		Ticket: ticket,
		URL:    url,
	})
	if err != nil {
		return nil, fmt.Errorf("send challenge: %w", err)
	}
	h.metrics.RecordWSMessage("out", types.ChallengeRequested)
	h.logger.Info("challenge sent",
		zap.String("ticket", ticket),
		zap.String("solver", p.solver.id),
		zap.String("url", url),
	)

	select {
	case r := <-p.reply:
		return r.headers, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleConnection upgrades a solver connection and serves it until it closes
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	s := &solver{id: uuid.NewString(), conn: conn}
	if !h.register(s) {
		_ = s.send(types.ChallengeMessage{Type: "error", Error: ErrHubClosed.Error()})
		conn.Close()
		return
	}
	defer h.unregister(s)

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()
	h.logger.Info("challenge solver connected", zap.String("solver", s.id))

	for {
		var msg types.ChallengeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("challenge solver read failed", zap.String("solver", s.id), zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", messageLabel(msg.Type))

		switch msg.Type {
		case types.ChallengeSolved:
			h.answer(s, msg.Ticket, result{headers: msg.Headers})
		case types.ChallengeFailed:
			reason := msg.Error
			if reason == "" {
				reason = "no reason given"
			}
			h.answer(s, msg.Ticket, result{err: &SolverError{Ticket: msg.Ticket, Message: reason}})
		case "ping":
			_ = s.send(types.ChallengeMessage{Type: "pong"})
		default:
			_ = s.send(types.ChallengeMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

// answer delivers a reply to the waiting Resolve. Tickets only accept answers
// from the solver they were sent to.
func (h *Hub) answer(s *solver, ticket string, r result) {
	h.mu.Lock()
	p, ok := h.pending[ticket]
	if ok && p.solver == s {
		delete(h.pending, ticket)
	} else {
		ok = false
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Debug("ignoring answer for unknown ticket", zap.String("ticket", ticket), zap.String("solver", s.id))
		return
	}
	p.reply <- r
}

// messageLabel bounds metric label values to known message types
func messageLabel(t string) string {
	switch t {
	case types.ChallengeSolved, types.ChallengeFailed, "ping":
		return t
	}
	return "unknown"
}

func (h *Hub) register(s *solver) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.solvers = append(h.solvers, s)
	return true
}

// unregister removes s and fails every ticket it still owes
func (h *Hub) unregister(s *solver) {
	h.mu.Lock()
	for i, other := range h.solvers {
		if other == s {
			h.solvers = append(h.solvers[:i], h.solvers[i+1:]...)
			break
		}
	}
	var owed []*pending
	for ticket, p := range h.pending {
		if p.solver == s {
			owed = append(owed, p)
			delete(h.pending, ticket)
		}
	}
	h.mu.Unlock()

	for _, p := range owed {
		p.reply <- result{err: ErrSolverGone}
	}
	s.conn.Close()
	h.logger.Info("challenge solver disconnected", zap.String("solver", s.id), zap.Int("failed_tickets", len(owed)))
}

// Close disconnects every solver. Later challenges fail with ErrHubClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	solvers := append([]*solver(nil), h.solvers...)
	h.mu.Unlock()

	for _, s := range solvers {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.conn.Close()
	}
	return nil
}
