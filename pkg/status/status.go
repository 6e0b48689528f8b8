// Package status serves bridge snapshots over HTTP: the latest one as JSON on
// /api/status and every published one on the /status websocket.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/net/websocket"

	"github.com/stronnag/mwmav/pkg/bridge"
)

const (
	queueLen     = 64
	writeTimeout = time.Second
)

// sink is a connected client; *websocket.Conn in practice.
type sink interface {
	SetWriteDeadline(t time.Time) error
	Write(p []byte) (int, error)
	Close() error
}

// Server fans snapshots out to websocket clients. mu is never held across
// socket I/O, so Publish does not wait on a slow client.
type Server struct {
	log hclog.Logger

	mu      deadlock.Mutex
	sockets []sink
	latest  []byte

	messages chan []byte
	done     chan struct{}
	http     *http.Server
}

func New(log hclog.Logger) *Server {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	s := &Server{
		log:      log,
		messages: make(chan []byte, queueLen),
		done:     make(chan struct{}),
	}
	go s.writer()
	return s
}

// Publish records s as the latest snapshot and queues it for the websocket
// clients. It never blocks; a snapshot is dropped if the queue is full.
func (s *Server) Publish(snap bridge.Snapshot) {
	j, err := json.Marshal(snap)
	if err != nil {
		s.log.Error("marshal snapshot", "error", err)
		return
	}
	s.mu.Lock()
	s.latest = j
	s.mu.Unlock()
	select {
	case s.messages <- j:
	default:
		s.log.Debug("snapshot dropped")
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets)
}

func (s *Server) addSocket(c sink) {
	s.mu.Lock()
	s.sockets = append(s.sockets, c)
	s.mu.Unlock()
}

func (s *Server) writer() {
	for {
		var msg []byte
		select {
		case msg = <-s.messages:
		case <-s.done:
			return
		}
		s.mu.Lock()
		socks := append([]sink(nil), s.sockets...)
		s.mu.Unlock()

		var dead []sink
		for _, sock := range socks {
			err := sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			_, err2 := sock.Write(msg)
			if err != nil || err2 != nil {
				sock.Close()
				dead = append(dead, sock)
			}
		}
		if dead != nil {
			s.drop(dead)
		}
	}
}

func (s *Server) drop(dead []sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.sockets[:0]
	for _, sock := range s.sockets {
		keep := true
		for _, d := range dead {
			if sock == d {
				keep = false
				break
			}
		}
		if keep {
			p = append(p, sock)
		}
	}
	s.sockets = p
}

func (s *Server) handleWS(conn *websocket.Conn) {
	s.log.Debug("status client", "remote", conn.Request().RemoteAddr)
	s.addSocket(conn)
	buf := make([]byte, 512)
	for {
		// clients only listen; a read error means they went away
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.mu.Lock()
		j := s.latest
		s.mu.Unlock()
		if j == nil {
			http.Error(w, "no status yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(j)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		ws := websocket.Server{Handler: websocket.Handler(s.handleWS)}
		ws.ServeHTTP(w, r)
	})
	return mux
}

// ListenAndServe serves on addr until Close.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	s.http = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	hs := s.http
	s.mu.Unlock()
	s.log.Info("status server", "addr", addr)
	err := hs.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops the HTTP server and the writer and drops all clients.
func (s *Server) Close() error {
	s.mu.Lock()
	hs := s.http
	for _, sock := range s.sockets {
		sock.Close()
	}
	s.sockets = nil
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()

	if hs == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return hs.Shutdown(ctx)
}
