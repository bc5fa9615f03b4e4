// Package server is the remote operator panel: a small HTTP API and a
// websocket that mirrors the controller state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"

	"tagscribe/command"
	"tagscribe/controller"
)

// mDNS service registration.
const (
	MDNSServiceType = "_tagscribe._tcp"
	MDNSDomain      = "local."
)

// Config holds the remote panel settings.
type Config struct {
	Listen string `yaml:"listen"` // e.g. ":8080"; empty disables the server
	MDNS   bool   `yaml:"mdns"`
	Name   string `yaml:"name"` // mDNS instance name, defaults to the client id
}

// Backend is the application side of the panel.
type Backend interface {
	// Snapshot returns the current controller state. Safe from any goroutine.
	Snapshot() controller.State
	// Submit queues cmd for the controller.
	Submit(cmd command.Command) error
}

// Server serves the panel API.
type Server struct {
	config   Config
	version  string
	backend  Backend
	hub      *hub
	upgrader websocket.Upgrader

	httpServer *http.Server
	mdnsServer *zeroconf.Server
}

// New creates a server. It does not listen until Start.
func New(cfg Config, backend Backend, version string) *Server {
	return &Server{
		config:  cfg,
		version: version,
		backend: backend,
		hub:     newHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/state", s.handleState).Methods("GET")
	r.HandleFunc("/command", s.handleCommand).Methods("POST")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	return r
}

// Start listens on the configured address. It is a no-op when no address
// is configured.
func (s *Server) Start() error {
	if s.config.Listen == "" {
		log.Println("Remote panel disabled (no listen address)")
		return nil
	}
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Listen, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Remote panel: %v", err)
		}
	}()
	log.Printf("Remote panel listening on %s", ln.Addr())

	if s.config.MDNS {
		port := ln.Addr().(*net.TCPAddr).Port
		if err := s.startMDNS(port); err != nil {
			log.Printf("Remote panel: %v", err)
		}
	}
	return nil
}

func (s *Server) startMDNS(port int) error {
	txt := []string{"path=/ws", "version=" + s.version}
	server, err := zeroconf.Register(s.config.Name, MDNSServiceType, MDNSDomain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("register mDNS service: %w", err)
	}
	s.mdnsServer = server
	log.Printf("mDNS service registered: %s on port %d", s.config.Name, port)
	return nil
}

// Stop shuts down mDNS, the websocket clients and the HTTP server.
func (s *Server) Stop() {
	if s.mdnsServer != nil {
		s.mdnsServer.Shutdown()
		s.mdnsServer = nil
	}
	s.hub.closeAll()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Remote panel shutdown error: %v", err)
		}
		s.httpServer = nil
	}
}

// BroadcastState pushes a state to all websocket clients.
func (s *Server) BroadcastState(st controller.State) {
	s.hub.broadcast(Message{Type: "state", Payload: st})
}

// BroadcastWrite pushes a write event to all websocket clients.
func (s *Server) BroadcastWrite(ev controller.WriteEvent) {
	s.hub.broadcast(Message{Type: "write", Payload: ev})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"clients": s.hub.count(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Snapshot())
}

type commandRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	cmd, err := command.Parse(req.Command)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.backend.Submit(cmd); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"command": cmd.String()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	c := s.hub.register(conn, func() Message {
		return Message{Type: "state", Payload: s.backend.Snapshot()}
	})
	defer s.hub.unregister(c)

	for {
		var msg struct {
			Type    string `json:"type"`
			Payload string `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		if msg.Type != "command" {
			s.hub.sendTo(c, Message{Type: "error", Payload: "unknown message type " + msg.Type})
			continue
		}
		cmd, err := command.Parse(msg.Payload)
		if err == nil {
			err = s.backend.Submit(cmd)
		}
		if err != nil {
			s.hub.sendTo(c, Message{Type: "error", Payload: err.Error()})
		}
	}
}
