package renderer

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-backend/apperrors"
	"ledger-backend/logger"
	"ledger-backend/services"
)

func TestRenderPostsDocument(t *testing.T) {
	var got services.InvoiceDocument
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, logger.Nop())
	pdf, err := c.Render(&services.InvoiceDocument{Number: "INV-000001", TotalAmount: "105.00"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
	assert.Equal(t, "INV-000001", got.Number)
	assert.Equal(t, "105.00", got.TotalAmount)
}

func TestRenderFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, logger.Nop()).Render(&services.InvoiceDocument{Number: "INV-1"})
	assert.ErrorIs(t, err, apperrors.ErrTransient)

	c := New("", 0, logger.Nop())
	assert.False(t, c.Enabled())
	_, err = c.Render(&services.InvoiceDocument{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
