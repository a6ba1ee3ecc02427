package httpgin

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/geometry"
	"github.com/kirinyoku/stagekit/internal/interaction"
	"github.com/kirinyoku/stagekit/internal/quotation"
	"github.com/kirinyoku/stagekit/internal/render"
	redisrepo "github.com/kirinyoku/stagekit/internal/repository/redis"
	"github.com/kirinyoku/stagekit/internal/scene"
	"github.com/kirinyoku/stagekit/internal/service/configurator"
	"github.com/kirinyoku/stagekit/internal/service/sessions"
	"github.com/kirinyoku/stagekit/internal/templates"
)

const (
	dataURLPrefix = "data:image/png;base64,"
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func NewRouter(
	svc *sessions.Service,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/templates", handleListTemplates())

	r.POST("/sessions", handleCreateSession(svc))

	s := r.Group("/sessions/:id")
	{
		s.DELETE("", handleCloseSession(svc))

		s.GET("/objects", handleListObjects(svc))
		s.POST("/objects", handleAddObject(svc, idem))
		s.PATCH("/objects/:oid", handleEditObject(svc))
		s.DELETE("/objects/:oid", handleDeleteObject(svc))

		s.POST("/pointer/down", handlePointer(svc, pointerDown))
		s.POST("/pointer/move", handlePointer(svc, pointerMove))
		s.POST("/pointer/up", handlePointer(svc, pointerUp))
		s.GET("/selection", handleGetSelection(svc))
		s.DELETE("/selection", handleDeleteSelected(svc))
		s.POST("/viewport", handleViewport(svc))

		s.GET("/quotation", handleGetQuotation(svc))
		s.GET("/quotation.xlsx", handleQuotationXLSX(svc))
		s.GET("/quotation/stream", handleQuotationStream(svc))

		s.POST("/save", handleSave(svc))
		s.POST("/load", handleLoad(svc))
		s.GET("/export.png", handleExportImage(svc))
	}

	return r
}

// @Summary  List scene templates
// @Success  200  {array}  TemplateResponse
// @Router   /templates [get]
func handleListTemplates() gin.HandlerFunc {
	return func(c *gin.Context) {
		list := templates.List()
		out := make([]TemplateResponse, 0, len(list))
		for _, t := range list {
			out = append(out, toTemplateResponse(t))
		}
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=300", true)
	}
}

// @Summary  Open a configurator session
// @Param    req body  CreateSessionRequest false "optional template"
// @Success  201 {object} SessionResponse
// @Failure  404 {object} ErrorResponse "unknown template"
// @Failure  503 {object} ErrorResponse "too many sessions"
// @Router   /sessions [post]
func handleCreateSession(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSessionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
				badRequest(c, err.Error())
				return
			}
		}

		sess, err := svc.Create(strings.TrimSpace(req.Template))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, SessionResponse{
			ID:        sess.ID,
			Template:  sess.Template,
			CreatedAt: sess.CreatedAt,
		})
	}
}

// @Summary  Close a session, releasing its scene
// @Param    id  path  string  true  "Session ID"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{id} [delete]
func handleCloseSession(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Close(c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  List scene objects
// @Param    id  path  string  true  "Session ID"
// @Success  200 {array} ObjectResponse
// @Router   /sessions/{id}/objects [get]
func handleListObjects(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var out []ObjectResponse
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			_, selected := cfg.Selection()
			objs := cfg.Objects()
			out = make([]ObjectResponse, 0, len(objs))
			for _, o := range objs {
				out = append(out, toObjectResponse(o, selected))
			}
			return nil
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Add an object with default parameters (idempotent)
// @Param    id  path  string  true  "Session ID"
// @Param    req body  AddObjectRequest true "object type"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} ObjectResponse
// @Failure  400 {object} ErrorResponse "unsupported type"
// @Failure  409 {object} ErrorResponse "no stage / idem in progress"
// @Router   /sessions/{id}/objects [post]
func handleAddObject(svc *sessions.Service, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		var req AddObjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			ctx := c.Request.Context()
			idemStorageKey = idem.Key(sessionID, idemKey)

			if payload, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
				replay(c, idemKey, payload)
				return
			}

			locked, err := idem.AcquireLock(ctx, idemStorageKey, 30*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
					replay(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		var resp ObjectResponse
		err := svc.With(sessionID, func(cfg *configurator.Configurator) error {
			o, err := cfg.Add(req.Type)
			if err != nil {
				return err
			}
			_, selected := cfg.Selection()
			resp = toObjectResponse(o, selected)
			return nil
		})
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Edit object properties
// @Param    id   path  string        true  "Session ID"
// @Param    oid  path  string        true  "Object ID"
// @Param    req  body  domain.Patch  true  "fields to change"
// @Success  200 {object} ObjectResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{id}/objects/{oid} [patch]
func handleEditObject(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch domain.Patch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, err.Error())
			return
		}

		var resp ObjectResponse
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			o, err := cfg.ApplyEdit(c.Param("oid"), patch)
			if err != nil {
				return err
			}
			_, selected := cfg.Selection()
			resp = toObjectResponse(o, selected)
			return nil
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Delete an object
// @Param    id   path  string  true  "Session ID"
// @Param    oid  path  string  true  "Object ID"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /sessions/{id}/objects/{oid} [delete]
func handleDeleteObject(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			return cfg.Delete(c.Param("oid"))
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type pointerAction int

const (
	pointerDown pointerAction = iota
	pointerMove
	pointerUp
)

// @Summary  Pointer input (down, move, up) as a world-space ray
// @Param    id   path  string          true  "Session ID"
// @Param    req  body  PointerRequest  false "pick ray, not needed for up"
// @Success  200 {object} SelectionResponse
// @Router   /sessions/{id}/pointer/down [post]
// @Router   /sessions/{id}/pointer/move [post]
// @Router   /sessions/{id}/pointer/up [post]
func handlePointer(svc *sessions.Service, action pointerAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PointerRequest
		if action != pointerUp {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
			if req.Direction == (domain.Vec3{}) {
				badRequest(c, "direction must be non-zero")
				return
			}
		}
		ray := geometry.Ray{Origin: req.Origin, Direction: req.Direction}

		var resp SelectionResponse
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			var pos *domain.Vec3
			switch action {
			case pointerDown:
				cfg.PointerDown(ray)
			case pointerMove:
				if p, ok := cfg.PointerMove(ray); ok {
					pos = &p
				}
			case pointerUp:
				cfg.PointerUp()
			}
			resp = selection(cfg)
			resp.Position = pos
			return nil
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Selection state
// @Param    id  path  string  true  "Session ID"
// @Success  200 {object} SelectionResponse
// @Router   /sessions/{id}/selection [get]
func handleGetSelection(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var resp SelectionResponse
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			resp = selection(cfg)
			return nil
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Delete the selected object
// @Param    id  path  string  true  "Session ID"
// @Success  200 {object} map[string]string
// @Failure  409 {object} ErrorResponse "nothing selected"
// @Router   /sessions/{id}/selection [delete]
func handleDeleteSelected(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var deleted string
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			id, err := cfg.DeleteSelected()
			deleted = id
			return err
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}

// @Summary  Resize the viewport
// @Param    id   path  string           true  "Session ID"
// @Param    req  body  ViewportRequest  true  "size in pixels"
// @Success  204
// @Router   /sessions/{id}/viewport [post]
func handleViewport(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ViewportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			cfg.Resize(req.Width, req.Height)
			return nil
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Current quotation
// @Param    id  path  string  true  "Session ID"
// @Success  200 {object} domain.Quotation
// @Router   /sessions/{id}/quotation [get]
func handleGetQuotation(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q domain.Quotation
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			q = cfg.Quotation()
			return nil
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, q, "no-cache", true)
	}
}

// @Summary  Quotation as a spreadsheet
// @Param    id  path  string  true  "Session ID"
// @Produce  application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success  200 {file} file
// @Router   /sessions/{id}/quotation.xlsx [get]
func handleQuotationXLSX(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q domain.Quotation
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			q = cfg.Quotation()
			return nil
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		var buf bytes.Buffer
		if err := quotation.WriteXLSX(&buf, q); err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="quotation.xlsx"`)
		c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
	}
}

// @Summary  Quotation changes as server-sent events
// @Param    id  path  string  true  "Session ID"
// @Produce  text/event-stream
// @Success  200 {object} domain.Quotation
// @Router   /sessions/{id}/quotation/stream [get]
func handleQuotationStream(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		ch, cancel, err := svc.Watch(sessionID)
		if err != nil {
			respondErr(c, err)
			return
		}
		defer cancel()

		var current domain.Quotation
		if err := svc.With(sessionID, func(cfg *configurator.Configurator) error {
			current = cfg.Quotation()
			return nil
		}); err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent("quotation", current)
		c.Writer.Flush()

		c.Stream(func(io.Writer) bool {
			select {
			case q, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent("quotation", q)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}

// @Summary  Save the scene to the persistence slot
// @Param    id  path  string  true  "Session ID"
// @Success  204
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  503 {object} ErrorResponse "storage unavailable"
// @Router   /sessions/{id}/save [post]
func handleSave(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rlKey := "ip:" + c.ClientIP()
		if err := svc.Save(c.Request.Context(), c.Param("id"), rlKey); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Replace the scene with the saved one
// @Param    id  path  string  true  "Session ID"
// @Success  200 {array} ObjectResponse
// @Failure  404 {object} ErrorResponse "nothing saved"
// @Failure  422 {object} ErrorResponse "saved scene is corrupt"
// @Router   /sessions/{id}/load [post]
func handleLoad(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		if err := svc.Load(c.Request.Context(), sessionID); err != nil {
			respondErr(c, err)
			return
		}

		out := make([]ObjectResponse, 0)
		err := svc.With(sessionID, func(cfg *configurator.Configurator) error {
			for _, o := range cfg.Objects() {
				out = append(out, toObjectResponse(o, ""))
			}
			return nil
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Export the current view as PNG
// @Param    id      path   string  true   "Session ID"
// @Param    format  query  string  false  "dataurl returns JSON instead of a download"
// @Produce  image/png
// @Success  200 {file} file
// @Router   /sessions/{id}/export.png [get]
func handleExportImage(svc *sessions.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var url string
		err := svc.With(c.Param("id"), func(cfg *configurator.Configurator) error {
			u, err := cfg.ExportImage()
			url = u
			return err
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		if c.Query("format") == "dataurl" {
			c.JSON(http.StatusOK, ExportResponse{URL: url, Filename: render.ExportFilename})
			return
		}

		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, dataURLPrefix))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, render.ExportFilename))
		c.Data(http.StatusOK, "image/png", raw)
	}
}

// --- Helpers ---

func selection(cfg *configurator.Configurator) SelectionResponse {
	state, selected := cfg.Selection()
	return SelectionResponse{
		State:         state.String(),
		Selected:      selected,
		CameraEnabled: cfg.CameraEnabled(),
	}
}

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rl sessions.RateLimitedError

	switch {
	// sessions
	case errors.As(err, &rl):
		secs := int(rl.RetryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
	case errors.Is(err, sessions.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
	case errors.Is(err, sessions.ErrTooManySessions):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "too many sessions"})
	case errors.Is(err, templates.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "template not found"})
	// scene
	case errors.Is(err, scene.ErrNoStage):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "add a stage before adding a truss"})
	case errors.Is(err, scene.ErrObjectNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "object not found"})
	case errors.Is(err, scene.ErrDuplicateID):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "duplicate object id"})
	case errors.Is(err, domain.ErrInvalidProperties), errors.Is(err, domain.ErrUnsupportedType):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: rootMessage(err)})
	case errors.Is(err, interaction.ErrNothingSelected):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "nothing selected"})
	// persistence
	case errors.Is(err, configurator.ErrNothingToLoad):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no saved design"})
	case errors.Is(err, configurator.ErrCorruptScene):
		_ = c.Error(err)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "saved design is corrupt"})
	case errors.Is(err, configurator.ErrStorage):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "storage unavailable"})
	case errors.Is(err, render.ErrClosed):
		c.JSON(http.StatusGone, ErrorResponse{Error: "session closed"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// rootMessage returns the user-facing part of a validation error.
func rootMessage(err error) string {
	var invalid domain.InvalidPropertiesError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}
	var unsupported domain.UnsupportedTypeError
	if errors.As(err, &unsupported) {
		return unsupported.Error()
	}
	return "invalid request"
}
