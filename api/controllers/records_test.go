package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

type stubStatusReader struct {
	status  *models.SideEffectStatus
	err     error
	gotKind enums.EventKind
	gotID   string
}

func (s *stubStatusReader) Get(ctx context.Context, kind enums.EventKind, recordID string) (*models.SideEffectStatus, error) {
	s.gotKind = kind
	s.gotID = recordID
	return s.status, s.err
}

func TestRecordStatusFailed(t *testing.T) {
	t.Parallel()

	detail := "invalid recipient"
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	reader := &stubStatusReader{status: &models.SideEffectStatus{SideEffectError: &detail, SideEffectErrorAt: &at}}

	rec := httptest.NewRecorder()
	RecordStatus(reader, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodGet, "/", "",
		map[string]string{"kind": "record_created", "id": "rec-1"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.EventKindRecordCreated, reader.gotKind)
	assert.Equal(t, "rec-1", reader.gotID)

	data := decodeData(t, rec)
	assert.Equal(t, "record_created", data["kind"])
	assert.Equal(t, "rec-1", data["recordId"])
	assert.Equal(t, false, data["sent"])
	assert.Equal(t, detail, data["error"])
	assert.Equal(t, false, data["inFlight"])
	assert.NotContains(t, data, "reference")
}

func TestRecordStatusUnknownKind(t *testing.T) {
	t.Parallel()

	reader := &stubStatusReader{}
	rec := httptest.NewRecorder()
	RecordStatus(reader, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodGet, "/", "",
		map[string]string{"kind": "record_deleted", "id": "rec-1"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, reader.gotID)
}

func TestRecordStatusNotFound(t *testing.T) {
	t.Parallel()

	reader := &stubStatusReader{err: pkgerrors.New(pkgerrors.CodeNotFound, "record not found")}
	rec := httptest.NewRecorder()
	RecordStatus(reader, logger.Nop()).ServeHTTP(rec, newJSONRequest(http.MethodGet, "/", "",
		map[string]string{"kind": "payment_resolved", "id": "missing"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotFound), decodeError(t, rec).Code)
}
