package httpserver

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"smartid/internal/platform/config"
)

func TestNew(t *testing.T) {
	cfg := config.Server{Addr: ":9999", ReadTimeout: 3 * time.Second, WriteTimeout: 4 * time.Second}

	srv := New(cfg, http.NotFoundHandler(), slog.Default())
	assert.Equal(t, ":9999", srv.Addr)
	assert.Equal(t, 3*time.Second, srv.ReadTimeout)
	assert.Equal(t, 4*time.Second, srv.WriteTimeout)
	assert.Equal(t, readHeaderTimeout, srv.ReadHeaderTimeout)
	assert.NotNil(t, srv.ErrorLog)

	assert.Nil(t, New(cfg, http.NotFoundHandler(), nil).ErrorLog)
}
