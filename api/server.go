package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	log15 "github.com/inconshreveable/log15/v3"

	"github.com/tablerelay/tablerelay/game/coordinator"
	"github.com/tablerelay/tablerelay/transport/websocket"
)

// Server is the HTTP surface: read-only REST endpoints plus the WebSocket
// mount.
type Server struct {
	coord  *coordinator.Coordinator
	hub    *websocket.Hub
	router *mux.Router
	log    log15.Logger
}

// NewServer creates the API server and sets up its routes.
func NewServer(coord *coordinator.Coordinator, hub *websocket.Hub, logger log15.Logger) *Server {
	s := &Server{
		coord:  coord,
		hub:    hub,
		router: mux.NewRouter(),
		log:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.coord.ListRooms())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	info, err := s.coord.RoomInfo(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"rooms":       len(s.coord.ListRooms()),
		"connections": s.hub.Count(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}
