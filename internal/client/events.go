package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"

	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/websocket"
)

func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.base + "/events")
	if err != nil {
		return "", fmt.Errorf("events url: %w", err)
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// WatchAppointments streams status changes of the session's appointments
// to fn until ctx is done, which returns nil, or the stream fails.
func (c *Client) WatchAppointments(ctx context.Context, fn func(scheduling.StatusEvent)) error {
	if _, err := c.role(); err != nil {
		return err
	}
	target, err := c.eventsURL()
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("X-Request-ID", uuid.NewString())
	header.Set("Authorization", "Bearer "+c.session.Token())

	dialer := gorillawebsocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.http.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return statusError(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
		}
		return &Error{Kind: KindTransport, Message: "open event stream", Err: err}
	}
	defer conn.Close()
	c.logger.Debug().Str("url", target).Msg("event stream open")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var ev websocket.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &Error{Kind: KindTransport, Message: "event stream closed", Err: err}
		}
		if ev.Type != websocket.TypeAppointmentStatus {
			continue
		}
		var se scheduling.StatusEvent
		if err := json.Unmarshal(ev.Data, &se); err != nil {
			c.logger.Warn().Err(err).Msg("skip malformed appointment event")
			continue
		}
		fn(se)
	}
}
