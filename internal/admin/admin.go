// Package admin implements goradiusd's plain-HTTP introspection endpoint,
// exposing "/debug/hosts" and "/debug/stats" in place of a ConnectRPC admin
// surface, which would depend on buf-generated protobuf stubs not present
// here (see DESIGN.md).
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dlp-radius/goradius/internal/radserver"
)

// hostView is the JSON shape of a registered host exposed over
// /debug/hosts. Secret is deliberately omitted: radserver.HostTable.Hosts
// documents that callers exposing its snapshot externally must redact
// Secret before serializing.
type hostView struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// statsView is the JSON shape returned by /debug/stats.
type statsView struct {
	HostCount int    `json:"host_count"`
	Uptime    string `json:"uptime"`
}

// Server exposes host-table and basic runtime introspection over plain
// HTTP + JSON.
type Server struct {
	hosts   *radserver.HostTable
	started time.Time
}

// NewServer builds an admin Server backed by hosts. The returned Server's
// Handler is ready to mount on an *http.Server.
func NewServer(hosts *radserver.HostTable) *Server {
	return &Server{hosts: hosts, started: time.Now()}
}

// Handler returns the admin mux: GET /debug/hosts, GET /debug/stats.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /debug/hosts", s.handleHosts)
	mux.HandleFunc("GET /debug/stats", s.handleStats)
	return mux
}

// NewHTTPServer builds an *http.Server serving Handler on addr, with the
// same ReadHeaderTimeout convention used by every other listener here.
func NewHTTPServer(addr string, hosts *radserver.HostTable) *http.Server {
	s := NewServer(hosts)
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	hosts := s.hosts.Hosts()
	views := make([]hostView, 0, len(hosts))
	for _, h := range hosts {
		views = append(views, hostView{Name: h.Name, Addr: h.Addr.String()})
	}
	writeJSON(w, views)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statsView{
		HostCount: len(s.hosts.Hosts()),
		Uptime:    time.Since(s.started).String(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
