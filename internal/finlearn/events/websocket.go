// Доставка событий сессий редактора в браузер через вебсокеты.
//
// Основные возможности:
//   - Несколько подключений на одну сессию редактирования.
//   - Отправка событий change, mode, dialog и прогресса загрузки в JSON.
//   - Пинг для поддержания соединений и удаление неактивных.
package events

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/session"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gofrs/uuid"
)

const (
	pingPeriod = time.Second * 20
	timeout    = time.Minute
)

type Message struct {
	session.Event
	CreatedAt time.Time `json:"created_at"`
}

type Hub struct {
	sessions map[uuid.UUID]map[uuid.UUID]*websocket.Conn
	mutex    sync.RWMutex

	originPatterns []string
}

// NewHub создаёт хаб. originPatterns ограничивают источники подключений, пустой список - только тот же хост.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		sessions:       make(map[uuid.UUID]map[uuid.UUID]*websocket.Conn),
		originPatterns: originPatterns,
	}
}

// Handle подписывает соединение на события сессии и держит его до закрытия клиентом.
func (h *Hub) Handle(sessionId uuid.UUID, w http.ResponseWriter, req *http.Request) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Open websocket connection", "session", sessionId, "err", err)
		return
	}
	defer c.CloseNow()

	conId := uuid.Must(uuid.NewV4())

	h.mutex.Lock()
	cons, ok := h.sessions[sessionId]
	if !ok {
		cons = make(map[uuid.UUID]*websocket.Conn)
	}
	cons[conId] = c
	h.sessions[sessionId] = cons
	h.mutex.Unlock()

	ctx := c.CloseRead(req.Context())
	go h.pingLoop(ctx, sessionId, conId, c)

	<-ctx.Done()

	h.remove(sessionId, conId)
	c.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) remove(sessionId, conId uuid.UUID) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.sessions[sessionId], conId)
	if len(h.sessions[sessionId]) == 0 {
		delete(h.sessions, sessionId)
	}
}

// Publish отправляет событие всем подписчикам его сессии.
func (h *Hub) Publish(ev session.Event) {
	h.mutex.RLock()
	cons := make([]*websocket.Conn, 0, len(h.sessions[ev.SessionId]))
	for _, c := range h.sessions[ev.SessionId] {
		cons = append(cons, c)
	}
	h.mutex.RUnlock()

	msg := Message{Event: ev, CreatedAt: time.Now().UTC()}
	for _, c := range cons {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := wsjson.Write(ctx, c, msg); err != nil {
			slog.Error("Write event to websocket", "session", ev.SessionId, "type", ev.Type, "err", err)
		}
		cancel()
	}
}

// CloseSession закрывает все подключения сессии, например после её закрытия на сервере.
func (h *Hub) CloseSession(sessionId uuid.UUID) {
	h.mutex.Lock()
	cons := h.sessions[sessionId]
	delete(h.sessions, sessionId)
	h.mutex.Unlock()

	for _, con := range cons {
		con.Close(websocket.StatusNormalClosure, "session closed")
	}
}

func (h *Hub) Subscribers(sessionId uuid.UUID) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessions[sessionId])
}

func (h *Hub) pingLoop(ctx context.Context, sessionId, conId uuid.UUID, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err := conn.Ping(pingCtx)
		cancel()
		if err != nil {
			slog.Debug("Ping to websocket failed", "session", sessionId, "err", err)
			h.remove(sessionId, conId)
			conn.Close(websocket.StatusNormalClosure, "Ping failed, connection closed")
			return
		}
	}
}
