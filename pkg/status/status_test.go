package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/stronnag/mwmav/pkg/bridge"
)

func snap(fc string, alt int32) bridge.Snapshot {
	var s bridge.Snapshot
	s.FC = fc
	s.Altitude = alt
	s.Failsafe.Mode = "default"
	return s
}

func TestAPIStatus(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("before publish: %d", res.StatusCode)
	}

	s.Publish(snap("armed", 1234))
	res, err = http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	var got bridge.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.FC != "armed" || got.Altitude != 1234 {
		t.Errorf("%+v", got)
	}

	res, err = http.Post(ts.URL+"/api/status", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST: %d", res.StatusCode)
	}
}

func TestWebsocket(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/status"
	ws, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Publish(snap("standby", 10))
	s.Publish(snap("armed", 20))
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"standby", "armed"} {
		var got bridge.Snapshot
		if err := websocket.JSON.Receive(ws, &got); err != nil {
			t.Fatal(err)
		}
		if got.FC != want {
			t.Errorf("got %q want %q", got.FC, want)
		}
	}
}

func TestDeadClientDropped(t *testing.T) {
	s := New(nil)
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/status"
	ws, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ws.Close()

	for s.Clients() != 0 {
		if time.Now().After(deadline.Add(2 * time.Second)) {
			t.Fatal("closed client kept")
		}
		s.Publish(snap("standby", 0))
		time.Sleep(20 * time.Millisecond)
	}
}

// stuckClient blocks in Write until released, like a client that stopped
// reading.
type stuckClient struct {
	writing chan struct{}
	release chan struct{}
}

func (c *stuckClient) SetWriteDeadline(time.Time) error { return nil }

func (c *stuckClient) Write(p []byte) (int, error) {
	select {
	case c.writing <- struct{}{}:
	default:
	}
	<-c.release
	return len(p), nil
}

func (c *stuckClient) Close() error { return nil }

func TestPublishDoesNotWaitForClients(t *testing.T) {
	s := New(nil)
	defer s.Close()
	c := &stuckClient{writing: make(chan struct{}, 1), release: make(chan struct{})}
	defer close(c.release)
	s.addSocket(c)

	s.Publish(snap("standby", 0))
	select {
	case <-c.writing:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never reached the client")
	}

	done := make(chan struct{})
	go func() {
		s.Publish(snap("armed", 1))
		s.Clients()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Publish blocked behind a client write")
	}
}
