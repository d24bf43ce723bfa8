package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/auth"
)

func testHub() *Hub {
	return NewHub(zerolog.New(io.Discard))
}

func TestTopic(t *testing.T) {
	if got := Topic(auth.RoleDoctor, 3); got != "doctor/3" {
		t.Fatalf("expected doctor/3, got %s", got)
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := testHub()
	client := newClient([]string{"patient/10", AdminTopic})

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount("patient/10") != 1 || hub.TopicCount(AdminTopic) != 1 {
		t.Fatal("expected the client on both topics")
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount("patient/10") != 0 {
		t.Fatal("expected the hub to be empty")
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send to be closed")
	}
}

func TestHub_PublishOnlyToTopic(t *testing.T) {
	hub := testHub()
	cara := newClient([]string{"patient/10"})
	dan := newClient([]string{"patient/11"})
	hub.Register(cara)
	hub.Register(dan)

	var pub Publisher = hub
	err := pub.Publish(context.Background(), Event{
		Type:  TypeAppointmentStatus,
		Topic: "patient/10",
		Data:  json.RawMessage(`{"appointmentId":7}`),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-cara.Send:
		var got Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Topic != "patient/10" || got.Timestamp.IsZero() {
			t.Errorf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event")
	}
	select {
	case <-dan.Send:
		t.Fatal("other patient must not receive the event")
	default:
	}
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := testHub()
	slow := &Client{ID: "slow", Topics: []string{"doctor/1"}, Send: make(chan []byte, 1)}
	hub.Register(slow)

	for i := 0; i < 3; i++ {
		if err := hub.Publish(context.Background(), Event{Topic: "doctor/1"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if len(slow.Send) != 1 {
		t.Fatalf("expected one buffered frame, got %d", len(slow.Send))
	}
}

func TestHub_ConcurrentRegisterPublish(t *testing.T) {
	hub := testHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newClient([]string{AdminTopic})
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			hub.Publish(context.Background(), Event{Topic: AdminTopic})
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestTopicsFor(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		roles []string
		want  []string
	}{
		{"patient", "10", []string{"patient"}, []string{"patient/10"}},
		{"doctor upper case", "3", []string{"DOCTOR"}, []string{"doctor/3"}},
		{"admin", "1", []string{"admin"}, []string{AdminTopic}},
		{"unknown role", "4", []string{"nurse"}, nil},
		{"no subject", "", []string{"patient"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := auth.WithIdentity(context.Background(), tt.id, "", tt.roles)
			got := topicsFor(ctx)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// identity stands in for the JWT middleware.
func identity(id, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithIdentity(c.Request().Context(), id, "", []string{role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func newEventsServer(t *testing.T, hub *Hub, id, role string) *httptest.Server {
	t.Helper()
	e := echo.New()
	g := e.Group("/api", identity(id, role))
	NewHandler(hub).RegisterRoutes(g)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return ts
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandler_StreamsTopicEvents(t *testing.T) {
	hub := testHub()
	ts := newEventsServer(t, hub, "3", "doctor")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return hub.TopicCount("doctor/3") == 1 })

	hub.Publish(context.Background(), Event{Type: TypeAppointmentStatus, Topic: "doctor/4"})
	hub.Publish(context.Background(), Event{Type: TypeAppointmentStatus, Topic: "doctor/3", Data: json.RawMessage(`{"to":"CONFIRMED"}`)})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Topic != "doctor/3" || string(got.Data) != `{"to":"CONFIRMED"}` {
		t.Errorf("unexpected event %+v", got)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHandler_RejectsWithoutTopics(t *testing.T) {
	hub := testHub()
	ts := newEventsServer(t, hub, "", "patient")

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
