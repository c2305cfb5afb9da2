package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"healthtrack/internal/platform/config"
)

func TestNew(t *testing.T) {
	handler := http.NewServeMux()

	t.Run("configured timeouts are applied", func(t *testing.T) {
		srv := New(config.Server{
			Addr:         ":9100",
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 3 * time.Second,
			IdleTimeout:  4 * time.Second,
		}, handler)

		assert.Equal(t, ":9100", srv.Addr)
		assert.Equal(t, 2*time.Second, srv.ReadTimeout)
		assert.Equal(t, 3*time.Second, srv.WriteTimeout)
		assert.Equal(t, 4*time.Second, srv.IdleTimeout)
		assert.Equal(t, headerTimeout, srv.ReadHeaderTimeout)
	})

	t.Run("missing timeouts fall back to defaults", func(t *testing.T) {
		srv := New(config.Server{Addr: ":9100"}, handler)

		defaults := config.Default().Server
		assert.Equal(t, defaults.ReadTimeout, srv.ReadTimeout)
		assert.Equal(t, defaults.WriteTimeout, srv.WriteTimeout)
		assert.Equal(t, defaults.IdleTimeout, srv.IdleTimeout)
	})
}
