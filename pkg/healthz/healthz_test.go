package healthz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunAggregatesOK(t *testing.T) {
	c := NewChecker(0)
	c.Register("postgres", func(ctx context.Context) error { return nil })
	c.Register("redis", func(ctx context.Context) error { return nil })

	report := c.Run(context.Background())
	assert.Equal(t, StatusOK, report.Status)
	assert.Len(t, report.Dependencies, 2)
}

func TestRunAggregatesDown(t *testing.T) {
	c := NewChecker(0)
	c.Register("postgres", func(ctx context.Context) error { return errors.New("unreachable") })

	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "unreachable", report.Dependencies[0].Error)
}

func TestReadinessHandlerReturns503OnDown(t *testing.T) {
	c := NewChecker(0)
	c.Register("db", func(ctx context.Context) error { return errors.New("boom") })

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	c.ReadinessHandler()(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
