package httpserver

import (
	"net/http"

	"github.com/yndnr/wsmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

// RouterConfig holds the handlers mounted by NewRouter.
type RouterConfig struct {
	WSPath   string
	Clients  http.Handler
	PeerPath string
	Peers    http.Handler

	// Metrics is mounted at MetricsPath when non-nil.
	MetricsPath string
	Metrics     http.Handler

	// AdminAllowList limits /metrics and /stats. Empty allows all.
	AdminAllowList []string

	API    *handler.Handler
	Logger logger.Logger
}

// NewRouter builds the top-level mux.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	mux := http.NewServeMux()

	base := []Middleware{RequestID(), Recover(log)}
	admin := append(append([]Middleware{}, base...), NetworkACL(cfg.AdminAllowList, log), AccessLog(log))

	if cfg.Clients != nil {
		mux.Handle("GET "+cfg.WSPath, Chain(cfg.Clients, base...))
	}
	if cfg.Peers != nil {
		mux.Handle("GET "+cfg.PeerPath, Chain(cfg.Peers, base...))
	}
	if cfg.Metrics != nil {
		mux.Handle("GET "+cfg.MetricsPath, Chain(cfg.Metrics, admin...))
	}
	if cfg.API != nil {
		mux.Handle("GET /health", Chain(cfg.API, base...))
		mux.Handle("GET /ready", Chain(cfg.API, base...))
		mux.Handle("GET /stats", Chain(cfg.API, admin...))
	}
	return mux
}
