package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledgermatch/internal/application/service"
	"github.com/eshaffer321/ledgermatch/internal/domain/matcher"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/storage"
)

// setChiURLParam adds a chi URL parameter to the request context.
func setChiURLParam(ctx context.Context, key, value string) context.Context {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

func newService(t *testing.T, repo storage.Repository) *service.ReconcileService {
	t.Helper()
	n := 0
	svc, err := service.NewReconcileService(
		matcher.DefaultSettings(),
		repo,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		service.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		}),
	)
	require.NoError(t, err)
	return svc
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}
