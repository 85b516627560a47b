package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/amity-server/internal/core"
	"github.com/vovakirdan/amity-server/internal/proto"
	"github.com/vovakirdan/amity-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to a core.Client.
// Each connection gets a read loop feeding intents into the connection
// handler and a write loop draining the client's outbox.
type WSHandler struct {
	handler   *core.ConnectionHandler
	queueSize int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(handler *core.ConnectionHandler, queueSize int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{handler: handler, queueSize: queueSize, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(utils.NewID(), h.queueSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Disconnect must run before the deferred conn.Close so typing and
	// presence teardown observe the final connection state.
	defer h.handler.Disconnect(context.WithoutCancel(ctx), client)

	// Anonymous connections are reaped after the auth deadline.
	authTimer := time.AfterFunc(h.handler.AuthTimeout(), func() {
		if !client.Authenticated() {
			h.log.Debug().Str("conn_id", client.ConnID).Msg("authentication deadline passed")
			client.Close(nil)
			cancel()
		}
	})
	defer authTimer.Stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if closeReason := client.CloseReason(); closeReason != nil && closeReason.Code == core.ErrCodeSlowConsumer {
		status = websocket.StatusPolicyViolation
		reason = core.ErrCodeSlowConsumer
		h.log.Warn().Str("conn_id", client.ConnID).Msg("closing slow consumer connection")
	} else if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		intent, protoErr := inboundToIntent(inbound)
		if protoErr != nil {
			h.log.Debug().Str("conn_id", client.ConnID).Str("intent", inbound.Type).Msg("rejected malformed intent")
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		h.handler.HandleIntent(ctx, client, *intent)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		event, err := client.Next(ctx)
		if err != nil {
			if errors.Is(err, ctx.Err()) {
				return ctx.Err()
			}
			// Outbox closed: either normal disconnect teardown or a slow
			// consumer eviction; ServeHTTP maps the close status.
			return nil
		}
		if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
			h.log.Error().Err(err).Str("conn_id", client.ConnID).Msg("write ws event")
			return err
		}
	}
}
