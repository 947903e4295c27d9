package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// liveFrame is one push on the live feed: the caller's view of the store.
type liveFrame struct {
	Loading     bool               `json:"loading"`
	Users       []domain.User      `json:"users,omitempty"`
	Itineraries []domain.Itinerary `json:"itineraries"`
	Customers   []domain.Customer  `json:"customers"`
	Bookings    []domain.Booking   `json:"bookings"`
}

// LiveHandler pushes the caller's visible snapshot over a WebSocket whenever
// the store changes.
type LiveHandler struct {
	store Store
	log   zerolog.Logger
}

func NewLiveHandler(store Store, log zerolog.Logger) *LiveHandler {
	return &LiveHandler{store: store, log: log.With().Str("component", "live").Logger()}
}

// Stream upgrades the connection and sends a frame now and after every
// change. Bursts of changes collapse into one frame carrying the latest state.
//
// @Summary      Live snapshot feed
// @Tags         live
// @Security     BearerAuth
// @Param        access_token  query  string  false  "Token, for clients that cannot set headers"
// @Success      101
// @Router       /v1/live [get]
func (h *LiveHandler) Stream(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	defer conn.Close()

	changed := make(chan struct{}, 1)
	changed <- struct{}{}
	unsub := h.store.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsub()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	log := h.log.With().Str("user_id", u.ID).Logger()
	log.Debug().Msg("live feed connected")
	for {
		select {
		case <-closed:
			log.Debug().Msg("live feed disconnected")
			return nil
		case <-c.Request().Context().Done():
			return nil
		case <-changed:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(visibleFrame(u, h.store.Loading(), h.store.Snapshot())); err != nil {
				log.Debug().Err(err).Msg("live feed write failed")
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

// visibleFrame filters snap down to what u may see. Only admins receive users
// and a user without roles receives empty lists.
func visibleFrame(u *domain.User, loading bool, snap service.Snapshot) liveFrame {
	if len(u.Roles) == 0 {
		return liveFrame{
			Loading:     loading,
			Itineraries: []domain.Itinerary{},
			Customers:   []domain.Customer{},
			Bookings:    []domain.Booking{},
		}
	}
	f := liveFrame{
		Loading:     loading,
		Itineraries: snap.Itineraries,
		Customers:   service.VisibleCustomers(u, snap.Customers),
		Bookings:    service.VisibleBookings(u, snap.Customers, snap.Bookings),
	}
	if f.Itineraries == nil {
		f.Itineraries = []domain.Itinerary{}
	}
	if u.HasRole(domain.RoleAdmin) {
		f.Users = snap.Users
	}
	return f
}
