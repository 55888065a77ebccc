// Package apitest provides a scriptable in-process Jimmy backend for tests
// and local demos.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/st-keller/jimmy-client/api"
	"github.com/st-keller/jimmy-client/types"
)

// StatusReply is one scripted status-check reply.
type StatusReply struct {
	Ready    bool
	Answer   string
	Links    []types.Link
	Position int
}

// Pending returns a not-ready reply at position.
func Pending(position int) StatusReply {
	return StatusReply{Position: position}
}

// Answered returns a ready reply.
func Answered(answer string, links ...types.Link) StatusReply {
	return StatusReply{Ready: true, Answer: answer, Links: links}
}

type keyBody struct {
	Key   types.ItemID `json:"key"`
	Token string       `json:"token"`
}

// Server is a fake backend. Status replies are consumed in order per id and
// the last one repeats.
type Server struct {
	// DoubleEncode wraps every JSON reply in a JSON string, as the
	// production backend does.
	DoubleEncode bool

	mu         sync.Mutex
	statuses   map[types.ItemID][]StatusReply
	questions  map[types.ItemID]string
	recents    []types.RecentItem
	recentDown bool
	chargeOK   bool
	failures   map[string]int
	calls      map[string]int
	tokens     []string
	engine     *gin.Engine
	httpServer *httptest.Server
}

// New creates a Server with charges accepted by default.
func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		statuses:  make(map[types.ItemID][]StatusReply),
		questions: make(map[types.ItemID]string),
		chargeOK:  true,
		failures:  make(map[string]int),
		calls:     make(map[string]int),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.countCalls, s.injectFailures)
	r.POST(api.PathCheck, s.handleCheck)
	r.POST(api.PathQuestion, s.handleQuestion)
	r.GET(api.PathRecent, s.handleRecent)
	r.POST(api.PathCharge, s.handleCharge)
	s.engine = r

	return s
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on a loopback port and returns the base URL.
func (s *Server) Start() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		s.httpServer = httptest.NewServer(s.engine)
	}
	return s.httpServer.URL
}

// Close stops the listener started by Start.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		s.httpServer.Close()
		s.httpServer = nil
	}
}

// SetStatus scripts the status replies for id.
func (s *Server) SetStatus(id types.ItemID, replies ...StatusReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = replies
}

// SetQuestion registers the text of a question.
func (s *Server) SetQuestion(id types.ItemID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[id] = text
}

// SetRecents replaces the recent-items feed.
func (s *Server) SetRecents(items ...types.RecentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recents = items
}

// SetRecentUnavailable makes the recent feed report status=false.
func (s *Server) SetRecentUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentDown = down
}

// SetChargeOK decides whether charges succeed.
func (s *Server) SetChargeOK(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chargeOK = ok
}

// FailWith makes every request to path answer with the given HTTP status.
// A zero status clears the failure.
func (s *Server) FailWith(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = status
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Tokens returns the charge tokens received, in order.
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func (s *Server) countCalls(c *gin.Context) {
	s.mu.Lock()
	s.calls[c.FullPath()]++
	s.mu.Unlock()
	c.Next()
}

func (s *Server) injectFailures(c *gin.Context) {
	s.mu.Lock()
	status, ok := s.failures[c.FullPath()]
	s.mu.Unlock()

	if ok {
		c.AbortWithStatusJSON(status, gin.H{"error": "injected failure"})
		return
	}
	c.Next()
}

func (s *Server) reply(c *gin.Context, body gin.H) {
	if !s.DoubleEncode {
		c.JSON(http.StatusOK, body)
		return
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, string(encoded))
}

func (s *Server) handleCheck(c *gin.Context) {
	var req keyBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	replies, ok := s.statuses[req.Key]
	var reply StatusReply
	if ok && len(replies) > 0 {
		reply = replies[0]
		if len(replies) > 1 {
			s.statuses[req.Key] = replies[1:]
		}
	}
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown key"})
		return
	}

	if reply.Ready {
		body := gin.H{"status": true, "answer": reply.Answer}
		if len(reply.Links) > 0 {
			body["list"] = reply.Links
		}
		s.reply(c, body)
		return
	}
	s.reply(c, gin.H{"status": false, "position": reply.Position})
}

func (s *Server) handleQuestion(c *gin.Context) {
	var req keyBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	text, ok := s.questions[req.Key]
	s.mu.Unlock()

	if !ok {
		s.reply(c, gin.H{"status": false})
		return
	}
	s.reply(c, gin.H{"status": true, "text": text})
}

func (s *Server) handleRecent(c *gin.Context) {
	s.mu.Lock()
	down := s.recentDown
	recents := append([]types.RecentItem{}, s.recents...)
	s.mu.Unlock()

	if down {
		s.reply(c, gin.H{"status": false})
		return
	}
	s.reply(c, gin.H{"status": true, "recents": recents})
}

func (s *Server) handleCharge(c *gin.Context) {
	var req keyBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.tokens = append(s.tokens, req.Token)
	ok := s.chargeOK
	s.mu.Unlock()

	s.reply(c, gin.H{"status": ok})
}
