package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second

	// DefaultPubResolution is the rate at which ele-updates are sent to the client, so as not to overburden.
	DefaultPubResolution = time.Millisecond * 100
	pingResolution       = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes idempotent updates unidirectionally to one web client via websocket.
// Intervening updates are discarded when they arrive faster than the publication rate;
// only the latest update is needed to specify the client's state.
type Client[T any] struct {
	updates       <-chan T
	initial       []T
	ws            *websock
	rootCtx       context.Context
	pubResolution time.Duration
	logger        zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption[T any] func(*Client[T])

// WithInitial sends the passed items as soon as the socket is up, bypassing the throttle,
// so that a freshly opened page is synchronized before the next live update.
func WithInitial[T any](items ...T) ClientOption[T] {
	return func(cli *Client[T]) {
		cli.initial = items
	}
}

// WithPubResolution overrides the minimum interval between published updates.
func WithPubResolution[T any](rate time.Duration) ClientOption[T] {
	return func(cli *Client[T]) {
		cli.pubResolution = rate
	}
}

// WithLogger sets the client's logger.
func WithLogger[T any](logger zerolog.Logger) ClientOption[T] {
	return func(cli *Client[T]) {
		cli.logger = logger
	}
}

// NewClient upgrades the request to a websocket and returns a publisher of the passed updates.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
	opts ...ClientOption[T],
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}

	cli := &Client[T]{
		updates:       updates,
		ws:            NewWebSocket(ws),
		rootCtx:       r.Context(),
		pubResolution: DefaultPubResolution,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// Sync runs the reader, ping-pong and publisher until the client disconnects or fails,
// then closes the socket.
// Sync returns nil upon client disconnect or an error if an unexpected error occurred.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)
	// The reader blocks on the connection; closing it is what releases the reader.
	group.Go(func() error {
		<-groupCtx.Done()
		cli.ws.Close()
		return nil
	})
	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})

	err := group.Wait()
	if isClosure(err) {
		err = nil
	}
	cli.logger.Debug().Err(err).Msg("websocket client finished")
	return err
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// Runs the ping-pong for the client liveness check.
// NOTE: readMessages must be running for the pong handler to be called.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %w", err, err)
				}
			}
			return
		})
}

// readMessages drains messages from the client. Errors returned by websocket Read methods
// are permanent, hence any error must trigger full teardown.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (cli *Client[T]) publish(ctx context.Context) error {
	for _, item := range cli.initial {
		if err := cli.send(ctx, item); err != nil {
			return err
		}
	}

	var lastSync time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			// Graceful input channel closure
			if !ok {
				return nil
			}
			// Drop updates when receiving too quickly.
			if time.Since(lastSync) < cli.pubResolution {
				break
			}

			lastSync = time.Now()
			if err := cli.send(ctx, updates); err != nil {
				return err
			}
		}
	}
}

func (cli *Client[T]) send(ctx context.Context, item T) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (writeErr error) {
			if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
				return fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
			}
			if writeErr = ws.WriteJSON(item); writeErr != nil && isError(writeErr) {
				writeErr = fmt.Errorf("publish failed: %T %w", writeErr, writeErr)
			}
			return
		})
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = time.Second
)

// websock serializes reads and writes to the websocket, which permits only one concurrent
// reader and one concurrent writer.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn returns the underlying websocket.
// This should only be used non-concurrently for setup, e.g. adding handlers.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame and closes the websocket. Reads blocked on the connection
// are released by the close itself.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}
	defer func() { <-sock.writeSem }()

	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sock.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = sock.ws.SetReadDeadline(time.Now().Add(closeGracePeriod))
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket.
// The read itself blocks until a message arrives or the connection fails.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
