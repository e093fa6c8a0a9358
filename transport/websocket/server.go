package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polygrid/tactics-backend/internal/entity"
	"github.com/polygrid/tactics-backend/internal/usecase"
)

type lobbyManager interface {
	CreateLobby(ctx context.Context, templateID string) (*entity.GameLobby, error)
	JoinLobby(ctx context.Context, lobbyID string, player *entity.Player) (*entity.GameLobby, error)
	LeaveLobby(ctx context.Context, lobbyID, playerName string) (*entity.GameLobby, bool, error)
	LeaveGame(ctx context.Context, lobbyID, playerName string) (*entity.GameLobby, error)
	LockLobby(ctx context.Context, lobbyID string) (*entity.GameLobby, error)
	GetLobby(ctx context.Context, lobbyID string) (*entity.GameLobby, error)
}

type gameManager interface {
	StartGame(ctx context.Context, lobbyID, playerID string) (*entity.GameState, error)
	ProcessMovement(ctx context.Context, lobbyID, playerID string, dest entity.Coordinates) (*entity.GameState, []entity.Coordinates, error)
	EndTurn(ctx context.Context, lobbyID, playerID string) (*entity.GameState, error)
	ToggleDoor(ctx context.Context, lobbyID, playerID string, pos entity.Coordinates) (*entity.GameState, error)
	StartCombat(ctx context.Context, lobbyID, attackerID, defenderID string) (*entity.GameState, error)
	Attack(ctx context.Context, lobbyID, playerID string) (*entity.GameState, *usecase.AttackResult, error)
	Flee(ctx context.Context, lobbyID, playerID string) (*entity.GameState, *usecase.FleeResult, error)
	RemovePlayer(ctx context.Context, lobbyID, playerName string) (*entity.GameState, *entity.Player, error)
	GetGame(ctx context.Context, lobbyID string) (*entity.GameState, error)
}

// client is one websocket connection bound to a player and, once joined, a
// lobby room.
type client struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	playerID   string
	playerName string
	lobbyID    string
}

func (that *client) send(action string, payload any) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	return that.conn.WriteJSON(Message{Action: action, Payload: mustMarshal(payload)})
}

// Server is the socket gateway: it translates inbound actions into manager
// calls and broadcasts the results to the lobby room. Rejections go back to
// the requester only.
type Server struct {
	logger  *slog.Logger
	lobbies lobbyManager
	games   gameManager

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]*client

	handlers map[string]func(ctx context.Context, cl *client, msg *Message) error
}

func New(logger *slog.Logger, lobbies lobbyManager, games gameManager) *Server {
	server := &Server{
		logger:  logger,
		lobbies: lobbies,
		games:   games,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		rooms:    make(map[string]map[*websocket.Conn]*client),
		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers["createLobby"] = server.handleCreateLobby
	server.handlers["joinLobby"] = server.handleJoinLobby
	server.handlers["leaveLobby"] = server.handleLeaveLobby
	server.handlers["lockLobby"] = server.handleLockLobby
	server.handlers["requestStart"] = server.handleRequestStart
	server.handlers["requestMovement"] = server.handleRequestMovement
	server.handlers["endTurn"] = server.handleEndTurn
	server.handlers["toggleDoor"] = server.handleToggleDoor
	server.handlers["attack"] = server.handleAttack
	server.handlers["flee"] = server.handleFlee
	server.handlers["leaveGame"] = server.handleLeaveGame

	return server
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.handleConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	cl := &client{conn: conn}

	defer func() {
		that.handleDisconnect(ctx, cl)
		_ = conn.Close()
	}()

	log.Info("WebSocket connection established")

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Info("connection closed", "error", err)
			return
		}

		handler, ok := that.handlers[msg.Action]
		if !ok {
			that.sendError(cl, msg.Action, "unknown action")
			continue
		}

		if err := handler(ctx, cl, &msg); err != nil {
			log.Error("error processing message", "action", msg.Action, "error", err)
		}
	}
}

// joinRoom binds the client to a lobby room.
func (that *Server) joinRoom(cl *client, lobbyID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if cl.lobbyID != "" && cl.lobbyID != lobbyID {
		delete(that.rooms[cl.lobbyID], cl.conn)
	}

	if _, ok := that.rooms[lobbyID]; !ok {
		that.rooms[lobbyID] = make(map[*websocket.Conn]*client)
	}
	that.rooms[lobbyID][cl.conn] = cl
	cl.lobbyID = lobbyID
}

func (that *Server) leaveRoom(cl *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if cl.lobbyID == "" {
		return
	}

	if room, ok := that.rooms[cl.lobbyID]; ok {
		delete(room, cl.conn)
		if len(room) == 0 {
			delete(that.rooms, cl.lobbyID)
		}
	}
	cl.lobbyID = ""
}

// Broadcast sends one event to every connection in the lobby room.
func (that *Server) Broadcast(lobbyID, action string, payload any) {
	log := that.logger.With("method", "Broadcast", "lobbyID", lobbyID, "action", action)

	that.mu.RLock()
	members := make([]*client, 0, len(that.rooms[lobbyID]))
	for _, member := range that.rooms[lobbyID] {
		members = append(members, member)
	}
	that.mu.RUnlock()

	for _, member := range members {
		if err := member.send(action, payload); err != nil {
			log.Error("failed to send broadcast", "player", member.playerName, "error", err)
		}
	}
}

// Publish implements usecase.EventPublisher for timer-driven events.
func (that *Server) Publish(lobbyID, event string, payload any) {
	that.Broadcast(lobbyID, event, payload)
}

// sendError is the only response a rejected request gets: unicast, never a
// room broadcast.
func (that *Server) sendError(cl *client, action, errorMsg string) {
	if err := cl.send("error", ErrorPayload{Action: action, Error: errorMsg}); err != nil {
		that.logger.Error("failed to send error response", "action", action, "error", err)
	}
}
