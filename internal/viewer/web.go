package viewer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/imu_visualiser/internal/orientation"
)

// wsWriteTimeout bounds one websocket write so one stuck browser cannot
// stall the render tick. A client that misses the deadline is dropped.
const wsWriteTimeout = 100 * time.Millisecond

// Update is the JSON payload pushed to browsers and served by the API.
type Update struct {
	ID   uint8   `json:"id"`
	W    float64 `json:"w"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Roll float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw  float64 `json:"yaw"`
}

// Hub serves the browser 3D view: a websocket endpoint that receives a
// JSON update per rendered source per tick, plus a polling API with the
// latest set. One Hub is shared by all source ids; Viewer hands out the
// per-id adapter.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	latest  map[uint8]Update

	upgrader websocket.Upgrader
	ln       net.Listener
	srv      *http.Server
}

func NewHub() *Hub {
	h := &Hub{
		clients: make(map[*websocket.Conn]bool),
		latest:  make(map[uint8]Update),
	}
	h.upgrader = websocket.Upgrader{
		// The viewer page is served from this same process.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return h
}

// Start listens on addr and serves in the background. The returned error
// covers the bind only; serve errors are logged.
func (h *Hub) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/api/orientation", h.handleAPI)
	mux.Handle("/", http.FileServer(http.Dir("web")))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web server listen on %s: %w", addr, err)
	}
	h.ln = ln
	h.srv = &http.Server{Handler: mux}

	go func() {
		log.Printf("web viewer listening on %s", ln.Addr())
		if err := h.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("web server error: %v", err)
		}
	}()
	return nil
}

// Addr reports the bound address, useful when Start was given ":0".
func (h *Hub) Addr() net.Addr {
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

func (h *Hub) Close() error {
	h.mu.Lock()
	for c := range h.clients {
		c.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.mu.Unlock()
	if h.srv != nil {
		return h.srv.Close()
	}
	return nil
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("web viewer client connected (%d total)", n)

	// Reads are discarded; the socket is push-only. The read loop exists
	// to notice the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.dropClient(conn)
				return
			}
		}
	}()
}

func (h *Hub) handleAPI(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	updates := make([]Update, 0, len(h.latest))
	for _, u := range h.latest {
		updates = append(updates, u)
	}
	h.mu.Unlock()

	if len(updates) == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(updates); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func (h *Hub) dropClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(u Update) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.latest[u.ID] = u
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("dropping slow web client: %v", err)
			h.dropClient(c)
		}
	}
	return nil
}

// Viewer returns the consumer for one source id backed by this hub.
func (h *Hub) Viewer(id uint8) Viewer {
	return &webViewer{hub: h, id: id}
}

type webViewer struct {
	hub *Hub
	id  uint8

	mu   sync.Mutex
	quat mgl64.Quat
	have bool
}

func (v *webViewer) SetOrientation(q mgl64.Quat) {
	v.mu.Lock()
	v.quat = q
	v.have = true
	v.mu.Unlock()
}

func (v *webViewer) Render() error {
	v.mu.Lock()
	q, have := v.quat, v.have
	v.mu.Unlock()
	if !have {
		return nil
	}

	p := orientation.PoseFromQuat(q)
	return v.hub.broadcast(Update{
		ID: v.id,
		W:  q.W, X: q.X(), Y: q.Y(), Z: q.Z(),
		Roll: p.Roll, Pitch: p.Pitch, Yaw: p.Yaw,
	})
}
