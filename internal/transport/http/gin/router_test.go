package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirinyoku/stagekit/internal/domain"
	"github.com/kirinyoku/stagekit/internal/service/sessions"
)

type memSlots struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memSlots) Get(_ context.Context, slot string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[slot]
	return v, ok, nil
}

func (m *memSlots) Put(_ context.Context, slot, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[slot] = payload
	return nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := sessions.New(&memSlots{data: map[string]string{}}, nil, nil, logger, sessions.Config{Width: 100, Height: 80})
	t.Cleanup(svc.CloseAll)

	return NewRouter(svc, nil, logger)
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, r http.Handler, template string) string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/sessions", CreateSessionRequest{Template: template})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func TestObjectLifecycle(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r, "")
	base := "/sessions/" + id

	w := do(t, r, http.MethodPost, base+"/objects", AddObjectRequest{Type: domain.TypeTruss})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, base+"/objects", AddObjectRequest{Type: domain.TypeSpeaker})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, base+"/objects", AddObjectRequest{Type: domain.TypeStage})
	require.Equal(t, http.StatusCreated, w.Code)
	var stage ObjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stage))
	assert.Equal(t, "stage-1", stage.ID)
	assert.Equal(t, int64(397488), stage.Price)

	w = do(t, r, http.MethodPatch, base+"/objects/stage-1", map[string]any{"width": -2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, base+"/objects/stage-1", map[string]any{"material": "deco_tile_used"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stage))
	assert.Equal(t, int64(122685), stage.Price)

	w = do(t, r, http.MethodPatch, base+"/objects/stage-9", map[string]any{"width": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, base+"/objects/stage-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, base+"/objects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestPointerDragAndDeleteSelected(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r, "")
	base := "/sessions/" + id

	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, base+"/objects", AddObjectRequest{Type: domain.TypeStage}).Code)

	w := do(t, r, http.MethodPost, base+"/pointer/down", PointerRequest{
		Origin:    domain.Vec3{Y: 20},
		Direction: domain.Vec3{Y: -1},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var sel SelectionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
	assert.Equal(t, "selected", sel.State)
	assert.Equal(t, "stage-1", sel.Selected)

	w = do(t, r, http.MethodPost, base+"/pointer/move", PointerRequest{
		Origin:    domain.Vec3{X: 2.04, Y: 20, Z: 0.96},
		Direction: domain.Vec3{Y: -1},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
	assert.Equal(t, "dragging", sel.State)
	assert.False(t, sel.CameraEnabled)
	require.NotNil(t, sel.Position)
	assert.InDelta(t, 2.0, sel.Position.X, 1e-9)
	assert.InDelta(t, 1.0, sel.Position.Z, 1e-9)

	w = do(t, r, http.MethodPost, base+"/pointer/up", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
	assert.Equal(t, "selected", sel.State)
	assert.True(t, sel.CameraEnabled)

	w = do(t, r, http.MethodDelete, base+"/selection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":"stage-1"}`, w.Body.String())

	w = do(t, r, http.MethodDelete, base+"/selection", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestQuotationETag(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r, "grandstand")
	path := "/sessions/" + id + "/quotation"

	w := do(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var q domain.Quotation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	require.Len(t, q.Items, 3)
	assert.Equal(t, q.Items[0].Amount+q.Items[1].Amount+q.Items[2].Amount, q.Total)

	w = do(t, r, http.MethodGet, path, nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)

	do(t, r, http.MethodPost, "/sessions/"+id+"/objects", AddObjectRequest{Type: domain.TypeLighting})
	w = do(t, r, http.MethodGet, path, nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSaveLoad(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r, "")
	base := "/sessions/" + id

	w := do(t, r, http.MethodPost, base+"/load", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	do(t, r, http.MethodPost, base+"/objects", AddObjectRequest{Type: domain.TypeLayher})
	require.Equal(t, http.StatusNoContent, do(t, r, http.MethodPost, base+"/save", nil).Code)

	do(t, r, http.MethodPost, base+"/objects", AddObjectRequest{Type: domain.TypeLayher})

	w = do(t, r, http.MethodPost, base+"/load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var objs []ObjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &objs))
	require.Len(t, objs, 1)
	assert.Equal(t, "layher-1", objs[0].ID)

	w = do(t, r, http.MethodPost, base+"/objects", AddObjectRequest{Type: domain.TypeLayher})
	var next ObjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &next))
	assert.Equal(t, "layher-3", next.ID)
}

func TestLoadEmptySceneReturnsEmptyArray(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r, "")
	base := "/sessions/" + id

	require.Equal(t, http.StatusNoContent, do(t, r, http.MethodPost, base+"/save", nil).Code)
	do(t, r, http.MethodPost, base+"/objects", AddObjectRequest{Type: domain.TypeStage})

	w := do(t, r, http.MethodPost, base+"/load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDownloads(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r, "seminar")
	base := "/sessions/" + id

	w := do(t, r, http.MethodGet, base+"/export.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "stage-design.png")
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())

	w = do(t, r, http.MethodGet, base+"/quotation.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Quotation")
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestUnknownSessionAndTemplate(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/sessions/nope/objects", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/sessions", CreateSessionRequest{Template: "rave"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []TemplateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 10)

	id := createSession(t, r, "")
	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/sessions/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/sessions/"+id, nil).Code)
}
