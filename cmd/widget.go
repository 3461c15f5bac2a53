package cmd

import (
	"net/http"

	"repo-scan/handlers"
	"repo-scan/render"
	"repo-scan/submitter"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var widgetCmd = &cobra.Command{
	Use:   "widget",
	Short: "serve the analysis form and live results",
	Args:  cobra.NoArgs,
	RunE:  runWidget,
}

func runWidget(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	display := render.NewDisplay()
	sub := &submitter.Submitter{
		API:      submitter.NewAnalyzerClient(cfg.Widget.AnalyzeURL, cfg.Widget.Timeout),
		Renderer: &render.Renderer{Display: display},
		Log:      logger,
	}

	handler := &handlers.WidgetHandler{
		Submitter: sub,
		Display:   display,
		Log:       logger,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	logger.Infof("starting widget on port %s (analysis API %s)...", cfg.Widget.Port, cfg.Widget.AnalyzeURL)
	return http.ListenAndServe(":"+cfg.Widget.Port, widgetRouter(handler))
}

func widgetRouter(handler *handlers.WidgetHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/", handler.Index)
	r.Post("/submit", handler.Submit)
	r.Get("/results", handler.Results)
	r.Get("/ws", handler.Stream)
	return r
}

func init() {
	rootCmd.AddCommand(widgetCmd)
}
