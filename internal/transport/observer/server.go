package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"zonegrid.ai/internal/observerproto"
	"zonegrid.ai/internal/sim/encoding"
	"zonegrid.ai/internal/sim/world"
)

// Published is one world generation as served to observers.
type Published struct {
	World      *world.World
	Generation int
	Params     world.Params
}

type Server struct {
	log *log.Logger

	cur atomic.Pointer[Published]

	mu   sync.Mutex
	subs map[string]chan *Published

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log:  logger,
		subs: map[string]chan *Published{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Publish replaces the served world and pushes it to every subscriber. A
// generation older than the one being served is dropped and Publish reports false.
func (s *Server) Publish(p *Published) bool {
	if p == nil || p.World == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.cur.Load(); cur != nil && cur.World.ID == p.World.ID && p.Generation < cur.Generation {
		if s.log != nil {
			s.log.Printf("observer: dropped stale %s gen=%d (serving gen=%d)", p.World.ID, p.Generation, cur.Generation)
		}
		return false
	}
	s.cur.Store(p)
	for _, ch := range s.subs {
		// Latest wins: drop a pending generation nobody has streamed yet.
		select {
		case <-ch:
		default:
		}
		ch <- p
	}
	if s.log != nil {
		s.log.Printf("observer: published %s gen=%d to %d subscribers", p.World.ID, p.Generation, len(s.subs))
	}
	return true
}

func (s *Server) Current() *Published { return s.cur.Load() }

func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		p := s.Current()
		if p == nil {
			http.Error(rw, "no world generated yet", http.StatusServiceUnavailable)
			return
		}

		w := p.World
		roles := make([]string, 0, int(world.RoleEmpty)+1)
		for role := world.RoleUnset; role <= world.RoleEmpty; role++ {
			roles = append(roles, role.String())
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         w.ID,
			Generation:      p.Generation,
			Digest:          w.Digest,
			WorldParams: observerproto.WorldParams{
				Length:              w.Length,
				Width:               w.Width,
				Seed:                w.Seed,
				UniqueChance:        p.Params.UniqueChance,
				ContinentIterations: p.Params.ContinentIterations,
				ContinentStrength:   p.Params.ContinentStrength,
				GrowthThreshold:     p.Params.GrowthThreshold,
				GrowthIncrement:     p.Params.GrowthIncrement,
				GrowthJitter:        p.Params.GrowthJitter,
			},
			ZonePalette: w.Palette,
			RolePalette: roles,
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		updates := make(chan *Published, 1)
		s.mu.Lock()
		s.subs[sid] = updates
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, sid)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		resub := make(chan observerproto.SubscribeMsg, 1)

		// Writer goroutine; the only one writing data frames to conn.
		writeErr := make(chan error, 1)
		go func() {
			cur := sub
			if p := s.Current(); p != nil {
				if err := streamWorld(conn, p, cur); err != nil {
					writeErr <- err
					return
				}
			}
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case p := <-updates:
					if err := streamWorld(conn, p, cur); err != nil {
						writeErr <- err
						return
					}
				case cur = <-resub:
					if p := s.Current(); p != nil {
						if err := streamWorld(conn, p, cur); err != nil {
							writeErr <- err
							return
						}
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, ok := parseSubscribe(msg)
			if !ok {
				continue
			}
			select {
			case resub <- sub:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	normalizeSubscribe(&sub)
	return sub, true
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.RowsPerMsg <= 0 {
		sub.RowsPerMsg = 16
	}
	if sub.RowsPerMsg > 256 {
		sub.RowsPerMsg = 256
	}
}

// streamWorld sends WORLD, the grid as ROWS bands, then DONE.
func streamWorld(conn *websocket.Conn, p *Published, sub observerproto.SubscribeMsg) error {
	w := p.World
	if err := writeJSON(conn, observerproto.WorldMsg{
		Type:            "WORLD",
		ProtocolVersion: observerproto.Version,
		WorldID:         w.ID,
		Generation:      p.Generation,
		Digest:          w.Digest,
		Length:          w.Length,
		Width:           w.Width,
		ZonePalette:     w.Palette,
	}); err != nil {
		return err
	}

	index := make(map[string]uint16, len(w.Palette))
	for i, name := range w.Palette {
		index[name] = uint16(i + 1)
	}
	for row0 := 0; row0 < w.Length; row0 += sub.RowsPerMsg {
		rows := min(sub.RowsPerMsg, w.Length-row0)
		band := w.Zones[row0*w.Width : (row0+rows)*w.Width]
		zones := make([]uint16, len(band))
		roles := make([]uint16, len(band))
		var variants []int
		if sub.Variants {
			variants = make([]int, len(band))
		}
		for i, z := range band {
			zones[i] = index[z.ZoneType]
			roles[i] = uint16(z.Role)
			if variants != nil {
				variants[i] = z.Variant
			}
		}
		if err := writeJSON(conn, observerproto.RowsMsg{
			Type:            "ROWS",
			ProtocolVersion: observerproto.Version,
			Generation:      p.Generation,
			Row0:            row0,
			Rows:            rows,
			Encoding:        "RLE_U16",
			Zones:           encoding.EncodeRLE(zones),
			Roles:           encoding.EncodeRLE(roles),
			Variants:        variants,
		}); err != nil {
			return err
		}
	}
	return writeJSON(conn, observerproto.DoneMsg{
		Type:            "DONE",
		ProtocolVersion: observerproto.Version,
		Generation:      p.Generation,
		Digest:          w.Digest,
	})
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
