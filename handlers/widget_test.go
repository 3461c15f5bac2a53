package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"repo-scan/render"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSubmitter struct {
	SubmitFn func(ctx context.Context, repoURL string) uint64
}

func (m *mockSubmitter) Submit(ctx context.Context, repoURL string) uint64 {
	return m.SubmitFn(ctx, repoURL)
}

func newWidget(sub Submitter) *WidgetHandler {
	return &WidgetHandler{
		Submitter: sub,
		Display:   render.NewDisplay(),
		Log:       logrus.New(),
	}
}

func TestIndex(t *testing.T) {
	h := newWidget(nil)
	h.Display.Set("<p>Total vulnerability percentage for the entire project: 10.00%</p>")

	rr := httptest.NewRecorder()
	h.Index(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `id="repoUrl"`)
	assert.Contains(t, body, `<div id="results"><p>Total vulnerability percentage for the entire project: 10.00%</p></div>`)
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name    string
		repoURL string
	}{
		{name: "github url", repoURL: "https://github.com/psf/requests"},
		{name: "empty", repoURL: ""},
		{name: "garbage", repoURL: "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			h := newWidget(&mockSubmitter{
				SubmitFn: func(ctx context.Context, repoURL string) uint64 {
					calls = append(calls, repoURL)
					return uint64(len(calls))
				},
			})

			form := url.Values{render.InputID: {tt.repoURL}}
			req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := httptest.NewRecorder()

			h.Submit(rr, req)

			assert.Equal(t, http.StatusAccepted, rr.Code)
			assert.Equal(t, []string{tt.repoURL}, calls)
		})
	}
}

func TestSubmit_ContextOutlivesRequest(t *testing.T) {
	var submitted context.Context
	h := newWidget(&mockSubmitter{
		SubmitFn: func(ctx context.Context, repoURL string) uint64 {
			submitted = ctx
			return 1
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/submit", nil).WithContext(ctx)
	h.Submit(httptest.NewRecorder(), req)
	cancel()

	require.NotNil(t, submitted)
	assert.NoError(t, submitted.Err())
}

func TestResults(t *testing.T) {
	h := newWidget(nil)

	rr := httptest.NewRecorder()
	h.Results(rr, httptest.NewRequest(http.MethodGet, "/results", nil))
	assert.Equal(t, "", rr.Body.String())

	h.Display.Set("<p>No dependencies found</p>")
	rr = httptest.NewRecorder()
	h.Results(rr, httptest.NewRequest(http.MethodGet, "/results", nil))
	assert.Equal(t, "<p>No dependencies found</p>", rr.Body.String())
}

func TestStream(t *testing.T) {
	h := newWidget(nil)
	h.Display.Set("<p>initial</p>")

	server := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "<p>initial</p>", string(msg))

	h.Display.Set("<p>updated</p>")
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "<p>updated</p>", string(msg))
}
