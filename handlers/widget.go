package handlers

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"repo-scan/render"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Submitter interface {
	Submit(ctx context.Context, repoURL string) uint64
}

type WidgetHandler struct {
	Submitter Submitter
	Display   *render.Display
	Log       *logrus.Logger
	Upgrader  websocket.Upgrader
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Repository Vulnerability Analysis</title>
</head>
<body>
<h1>Repository Vulnerability Analysis</h1>
<form id="analyze" method="post" action="/submit">
<input type="text" id="{{.InputID}}" name="{{.InputID}}" placeholder="https://github.com/owner/repo">
<button type="submit">Analyze</button>
</form>
<div id="{{.ResultsID}}">{{.Content}}</div>
<script>
(function () {
  var results = document.getElementById("{{.ResultsID}}");
  var form = document.getElementById("analyze");
  form.addEventListener("submit", function (e) {
    e.preventDefault();
    fetch("/submit", {method: "POST", body: new URLSearchParams(new FormData(form))});
  });
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function (e) { results.innerHTML = e.data; };
})();
</script>
</body>
</html>
`))

type pageView struct {
	InputID   string
	ResultsID string
	Content   template.HTML
}

func (h *WidgetHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pageTmpl.Execute(w, pageView{
		InputID:   render.InputID,
		ResultsID: h.Display.ID,
		Content:   template.HTML(h.Display.Content()),
	})
	if err != nil {
		h.Log.WithError(err).Error("rendering widget page")
	}
}

// Submit hands the repoUrl field to the Submitter and returns without waiting
// for the analysis.
func (h *WidgetHandler) Submit(w http.ResponseWriter, r *http.Request) {
	repoURL := r.FormValue(render.InputID)

	gen := h.Submitter.Submit(context.WithoutCancel(r.Context()), repoURL)
	h.Log.WithFields(logrus.Fields{
		"repo_url":   repoURL,
		"generation": gen,
	}).Debug("submission scheduled")

	w.WriteHeader(http.StatusAccepted)
}

func (h *WidgetHandler) Results(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(h.Display.Content()))
}

// Stream pushes the full display content over a websocket after every
// overwrite, starting with the current content.
func (h *WidgetHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.WithError(err).Warn("failed to upgrade connection")
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.Display.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(h.Display.Content())); err != nil {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case html := <-updates:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(html)); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
