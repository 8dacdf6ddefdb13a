package fakeapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	eveHTTP "venomqa.dev/venomqa/http"
)

// Bugs toggles the reference bugs spec.md §8.2's scenarios are written to
// surface. All default false: a clean server that satisfies every invariant.
type Bugs struct {
	// OverRefund lets refund_order add to Refunded past Amount unclamped
	// (Scenario A's no_over_refund violation).
	OverRefund bool
	// StaleReadsOnDelete makes read_item keep returning a deleted item
	// instead of 404 (Scenario B's deleted_returns_404 violation).
	StaleReadsOnDelete bool
	// SlowPollDelay, if nonzero, makes GET /slow sleep before replying
	// (Scenario F's cancellation-under-budget timing); /status is unaffected.
	SlowPollDelay time.Duration
}

// Server is the fakeapi reference implementation: the venomqa control
// plane plus the Orders/Items domain, wired together the way
// http/server.go wires an Echo instance for any EVE service.
type Server struct {
	Echo     *echo.Echo
	sessions *sessionStore
	bugs     Bugs
}

// New builds a fakeapi server with the given bug toggles.
func New(bugs Bugs) *Server {
	cfg := eveHTTP.DefaultServerConfig()
	cfg.Debug = false
	e := eveHTTP.NewEchoServer(cfg)
	e.HTTPErrorHandler = eveHTTP.CustomHTTPErrorHandler

	s := &Server{Echo: e, sessions: newSessionStore(), bugs: bugs}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/venomqa/health", s.health)
	s.Echo.POST("/venomqa/begin", s.begin)
	s.Echo.POST("/venomqa/checkpoint", s.checkpoint)
	s.Echo.POST("/venomqa/rollback", s.rollback)
	s.Echo.POST("/venomqa/end", s.end)

	s.Echo.POST("/orders", s.createOrder)
	s.Echo.POST("/orders/:id/refund", s.refundOrder)
	s.Echo.GET("/orders/:id", s.getOrder)

	s.Echo.POST("/items", s.createItem)
	s.Echo.DELETE("/items/:id", s.deleteItem)
	s.Echo.GET("/items/:id", s.readItem)

	s.Echo.GET("/status", s.pollStatus)
	s.Echo.GET("/slow", s.slow)
}

func errJSON(c echo.Context, code int, errCode, message string) error {
	return c.JSON(code, eveHTTP.ErrorResponse{Error: errCode, Message: message})
}

// sessionOf resolves the X-VenomQA-Session header (spec.md §6.3) to a live
// session, failing data-plane requests with 404 if the session is unknown —
// matching the control-plane's own "session not found" error code.
func (s *Server) sessionOf(c echo.Context) (*session, error) {
	id := c.Request().Header.Get("X-VenomQA-Session")
	if id == "" {
		return nil, errJSON(c, http.StatusNotFound, "session_not_found", "missing X-VenomQA-Session header")
	}
	sess, ok := s.sessions.get(id)
	if !ok {
		return nil, errJSON(c, http.StatusNotFound, "session_not_found", "unknown session "+id)
	}
	return sess, nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"protocol": "1.0",
		"database": "in-memory",
	})
}

func (s *Server) begin(c echo.Context) error {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusInternalServerError, "database_error", err.Error())
	}
	s.sessions.begin(req.SessionID)
	return c.JSON(http.StatusOK, map[string]string{"session_id": req.SessionID, "status": "began"})
}

func (s *Server) checkpoint(c echo.Context) error {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusInternalServerError, "database_error", err.Error())
	}
	sess, ok := s.sessions.get(req.SessionID)
	if !ok {
		return errJSON(c, http.StatusNotFound, "session_not_found", "unknown session "+req.SessionID)
	}
	id := sess.checkpoint()
	return c.JSON(http.StatusOK, map[string]string{"checkpoint_id": id, "session_id": req.SessionID})
}

func (s *Server) rollback(c echo.Context) error {
	var req struct {
		SessionID    string `json:"session_id"`
		CheckpointID string `json:"checkpoint_id"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusInternalServerError, "database_error", err.Error())
	}
	sess, ok := s.sessions.get(req.SessionID)
	if !ok {
		return errJSON(c, http.StatusNotFound, "session_not_found", "unknown session "+req.SessionID)
	}
	if err := sess.rollback(req.CheckpointID); err != nil {
		return errJSON(c, http.StatusNotFound, "checkpoint_not_found", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "rolled_back", "checkpoint_id": req.CheckpointID})
}

func (s *Server) end(c echo.Context) error {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusInternalServerError, "database_error", err.Error())
	}
	s.sessions.end(req.SessionID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ended", "session_id": req.SessionID})
}

func (s *Server) createOrder(c echo.Context) error {
	sess, err := s.sessionOf(c)
	if err != nil {
		return err
	}
	var req struct {
		Amount int `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusInternalServerError, "database_error", err.Error())
	}

	sess.mu.Lock()
	order := &Order{ID: uuid.NewString(), Amount: req.Amount}
	sess.state.Orders[order.ID] = order
	sess.mu.Unlock()

	return c.JSON(http.StatusCreated, order)
}

func (s *Server) refundOrder(c echo.Context) error {
	sess, err := s.sessionOf(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	order, ok := sess.state.Orders[id]
	if !ok {
		return errJSON(c, http.StatusNotFound, "order_not_found", "no such order "+id)
	}

	if s.bugs.OverRefund {
		order.Refunded += order.Amount
	} else if order.Refunded == 0 {
		order.Refunded += order.Amount
	}
	return c.JSON(http.StatusOK, order)
}

func (s *Server) getOrder(c echo.Context) error {
	sess, err := s.sessionOf(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	order, ok := sess.state.Orders[id]
	if !ok {
		return errJSON(c, http.StatusNotFound, "order_not_found", "no such order "+id)
	}
	return c.JSON(http.StatusOK, order)
}

func (s *Server) createItem(c echo.Context) error {
	sess, err := s.sessionOf(c)
	if err != nil {
		return err
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&req); err != nil {
		return errJSON(c, http.StatusInternalServerError, "database_error", err.Error())
	}

	sess.mu.Lock()
	item := &Item{ID: uuid.NewString(), Body: req.Body}
	sess.state.Items[item.ID] = item
	sess.mu.Unlock()

	return c.JSON(http.StatusCreated, item)
}

func (s *Server) deleteItem(c echo.Context) error {
	sess, err := s.sessionOf(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	item, ok := sess.state.Items[id]
	if !ok {
		return errJSON(c, http.StatusNotFound, "item_not_found", "no such item "+id)
	}
	item.Deleted = true
	if !s.bugs.StaleReadsOnDelete {
		delete(sess.state.Items, id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) readItem(c echo.Context) error {
	sess, err := s.sessionOf(c)
	if err != nil {
		return err
	}
	id := c.Param("id")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	item, ok := sess.state.Items[id]
	if !ok || (item.Deleted && !s.bugs.StaleReadsOnDelete) {
		return errJSON(c, http.StatusNotFound, "item_not_found", "no such item "+id)
	}
	return c.JSON(http.StatusOK, item)
}

// pollStatus changes no order or item — Scenario C's no-op action for
// loop-threshold detection. It only bumps the session's PollCalls counter,
// which it echoes back as "calls".
func (s *Server) pollStatus(c echo.Context) error {
	sess, err := s.sessionOf(c)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.state.PollCalls++
	calls := sess.state.PollCalls
	sess.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "idle", "calls": calls})
}

// slow sleeps bugs.SlowPollDelay before replying — Scenario F's cancellation
// timing fixture.
func (s *Server) slow(c echo.Context) error {
	if _, err := s.sessionOf(c); err != nil {
		return err
	}
	if s.bugs.SlowPollDelay > 0 {
		select {
		case <-time.After(s.bugs.SlowPollDelay):
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "done"})
}
