package ui

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gocausal/app"
	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/editor"
	apperrors "gocausal/internal/errors"
	"gocausal/internal/report"
	"gocausal/ports"
	"gocausal/ui/middleware"

	"github.com/gin-gonic/gin"
)

type createSessionRequest struct {
	Restore string `json:"restore"`
}

type sessionResponse struct {
	ID    core.SessionID `json:"id"`
	Scene editor.Scene   `json:"scene"`
}

type treatmentRequest struct {
	Treatment   causal.TreatmentKind `json:"treatment"`
	Alternative string               `json:"alternative"`
	Reference   string               `json:"reference"`
	Shift       string               `json:"shift"`
}

type modelRequest struct {
	Model  string         `json:"model"`
	Params map[string]any `json:"params"`
}

type resolveRequest struct {
	Attribute string `json:"attribute" binding:"required"`
}

func (s *Server) handleAttributes(c *gin.Context) {
	if s.attributes == nil {
		c.JSON(http.StatusOK, gin.H{"attributes": []string{}})
		return
	}
	attrs, err := s.attributes.Attributes(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.Wrap(err, "read attributes"))
		return
	}
	resp := gin.H{"attributes": attrs}
	if d, ok := s.attributes.(ports.AttributeDescriber); ok {
		infos, err := d.DescribeAttributes(c.Request.Context())
		if err != nil {
			respondError(c, apperrors.Wrap(err, "describe attributes"))
			return
		}
		resp["columns"] = infos
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperrors.InvalidInput(err.Error()))
			return
		}
	}

	var sess *editor.Session
	if req.Restore != "" {
		if s.openSaved == nil {
			respondError(c, apperrors.NotFound("saved graph"))
			return
		}
		var err error
		if sess, err = s.openSaved(c.Request.Context(), req.Restore); err != nil {
			respondError(c, err)
			return
		}
	} else {
		sess = s.sessions.Create()
	}

	c.JSON(http.StatusCreated, sessionResponse{ID: sess.ID, Scene: sess.Scene()})
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.sessions.List()})
}

func (s *Server) handleScene(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.SessionFrom(c).Scene())
}

func (s *Server) handleSVG(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	width := int(queryFloat(c, "width", 1200))
	height := int(queryFloat(c, "height", 800))
	c.Data(http.StatusOK, "image/svg+xml; charset=utf-8", []byte(sess.Scene().SVG(width, height)))
}

func (s *Server) handleEvent(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var ev editor.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		respondError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	if err := sess.Canvas.HandleEvent(ev); err != nil {
		respondError(c, err)
		return
	}
	s.respondScene(c, sess)
}

func (s *Server) handleEstimate(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	kind, err := app.ParseEstimationKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("async") == "true" {
		if err := s.estimation.Start(sess, kind); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"kind": kind, "loading": true})
		return
	}

	result, err := s.estimation.Estimate(c.Request.Context(), sess, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "scene": sess.Scene()})
}

func (s *Server) handleSetTreatment(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var req treatmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	err := sess.Canvas.Update(func(g *editor.GraphModel) error {
		return g.SetTreatment(c.Param("node"), req.Treatment, req.Alternative, req.Reference, req.Shift)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	s.respondScene(c, sess)
}

func (s *Server) handleSetModel(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var req modelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	err := sess.Canvas.Update(func(g *editor.GraphModel) error {
		return g.SetModel(c.Param("node"), req.Model, req.Params)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	s.respondScene(c, sess)
}

func (s *Server) handleResolveLatent(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	if !inCatalog(sess.Canvas.Attributes(), req.Attribute) {
		respondError(c, fmt.Errorf("%w: %s", core.ErrUnknownAttribute, req.Attribute))
		return
	}
	err := sess.Canvas.Update(func(g *editor.GraphModel) error {
		return g.ResolveLatent(c.Param("node"), req.Attribute)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	s.respondScene(c, sess)
}

func (s *Server) handleReverseEdge(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, apperrors.InvalidInput("edge index must be an integer"))
		return
	}
	if err := sess.Canvas.Update(func(g *editor.GraphModel) error { return g.ReverseEdge(index) }); err != nil {
		respondError(c, err)
		return
	}
	s.respondScene(c, sess)
}

func (s *Server) handleModels(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	models, err := s.estimation.ModelList(c.Request.Context(), sess.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (s *Server) handleModelOptions(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	options, err := s.estimation.ModelOptions(c.Request.Context(), sess.ID, c.Param("model"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"options": options})
}

func (s *Server) handleReport(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	g := report.Graph{SessionID: sess.ID.String(), GeneratedAt: time.Now()}
	sess.Canvas.View(func(m *editor.GraphModel) {
		g.Nodes = m.Nodes()
		g.Edges = m.Edges()
	})

	if c.Query("format") == "md" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(g)))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(g))
}

func (s *Server) handleExit(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if err := s.sessions.Close(c.Request.Context(), sess.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "saved": true})
}

// respondScene answers with the current scene and pushes it to the
// session's SSE subscribers
func (s *Server) respondScene(c *gin.Context, sess *editor.Session) {
	scene := sess.Scene()
	s.notifier.SceneChanged(sess.ID, scene)
	c.JSON(http.StatusOK, scene)
}

// inCatalog reports whether attr may be used. An empty catalog allows any.
func inCatalog(catalog []string, attr string) bool {
	if len(catalog) == 0 {
		return true
	}
	for _, a := range catalog {
		if a == attr {
			return true
		}
	}
	return false
}
