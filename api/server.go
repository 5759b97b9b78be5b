package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mangabeat/common"
	"mangabeat/story"
)

// Animator is the orchestration capability the API exposes.
type Animator interface {
	AnimateDialogueStreaming(ctx context.Context, req story.DialogueRequest) <-chan story.Event
	AnimateMusicStreaming(ctx context.Context, req story.MusicRequest) <-chan story.Event
}

// Server handles HTTP requests for story animation runs.
type Server struct {
	animator Animator
	runs     *runManager
}

func NewServer(animator Animator, store RunStore, uploads *common.S3) *Server {
	return &Server{
		animator: animator,
		runs:     newRunManager(store, uploads),
	}
}

// Router constructs a gin engine with registered routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", handleHealth)

	g := r.Group("/api/stories")
	g.POST("/dialogue", s.handleStartDialogue)
	g.POST("/music", s.handleStartMusic)
	g.GET("/:id", s.handleStatus)
	g.GET("/:id/events", s.handleEvents)
	return r
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleStartDialogue starts a dialogue animation run asynchronously and
// returns 202 with the story id.
func (s *Server) handleStartDialogue(c *gin.Context) {
	var req story.DialogueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: " + err.Error()})
		return
	}
	if len(req.Panels) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "panels are required"})
		return
	}
	storyID, conflict := s.claimStoryID(req.StoryID)
	if conflict {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("run %s is already in progress", storyID)})
		return
	}
	req.StoryID = storyID

	events := s.animator.AnimateDialogueStreaming(context.Background(), req)
	s.runs.start(storyID, "dialogue", events)
	c.JSON(http.StatusAccepted, gin.H{"story_id": storyID, "status": "started"})
}

// handleStartMusic starts a music video run asynchronously.
func (s *Server) handleStartMusic(c *gin.Context) {
	var req story.MusicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload: " + err.Error()})
		return
	}
	if len(req.Panels) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "panels are required"})
		return
	}
	storyID, conflict := s.claimStoryID(req.StoryID)
	if conflict {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("run %s is already in progress", storyID)})
		return
	}
	req.StoryID = storyID

	events := s.animator.AnimateMusicStreaming(context.Background(), req)
	s.runs.start(storyID, "music", events)
	c.JSON(http.StatusAccepted, gin.H{"story_id": storyID, "status": "started"})
}

// claimStoryID picks or validates the run id. A client-supplied id that
// is still running is a conflict.
func (s *Server) claimStoryID(requested string) (string, bool) {
	if requested == "" {
		return uuid.NewString()[:8], false
	}
	if s.runs.isActive(requested) {
		return requested, true
	}
	return requested, false
}

func (s *Server) handleStatus(c *gin.Context) {
	status, err := s.runs.status(c.Request.Context(), c.Param("id"))
	if err == ErrRunNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

type eventPayload struct {
	Kind      string        `json:"kind"`
	StoryID   string        `json:"story_id"`
	ClipIndex int           `json:"clip_index,omitempty"`
	Total     int           `json:"total,omitempty"`
	Message   string        `json:"message,omitempty"`
	Result    *story.Result `json:"result,omitempty"`
}

// handleEvents streams a run's events as server-sent events, replaying
// everything emitted so far before following live.
func (s *Server) handleEvents(c *gin.Context) {
	events, cancel, ok := s.runs.subscribe(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(eventPayload{
				Kind:      ev.Kind.String(),
				StoryID:   ev.StoryID,
				ClipIndex: ev.ClipIndex,
				Total:     ev.Total,
				Message:   ev.Message,
				Result:    ev.Result,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Kind.String(), payload)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
