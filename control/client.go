package control

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crosspost/config"
)

// State is the connection state of the client.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Client holds at most one live socket to the controller endpoint and feeds
// inbound requests through the dispatcher. Any close or error schedules a
// reconnect with exponential backoff; scheduling is idempotent because the
// single run loop owns the timer.
type Client struct {
	endpoint   string
	dispatcher *Dispatcher
	dial       func(ctx context.Context, endpoint string) (*websocket.Conn, error)

	mu      sync.Mutex
	state   State
	backoff backoff
	resetCh chan struct{}
}

// NewClient targets the given websocket endpoint; an empty endpoint falls
// back to the default local controller address.
func NewClient(endpoint string, dispatcher *Dispatcher) *Client {
	if endpoint == "" {
		endpoint = config.ControlEndpoint
	}
	return &Client{
		endpoint:   endpoint,
		dispatcher: dispatcher,
		dial: func(ctx context.Context, endpoint string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
			return conn, err
		},
		state: StateDisconnected,
		backoff: backoff{
			base:        config.ReconnectBase,
			cap:         config.ReconnectCap,
			maxAttempts: config.MaxReconnectAttempts,
		},
		resetCh: make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ResetBackoff clears the attempt counter and wakes a run loop that gave up
// after the maximum attempt count.
func (c *Client) ResetBackoff() {
	c.mu.Lock()
	c.backoff.reset()
	c.mu.Unlock()
	select {
	case c.resetCh <- struct{}{}:
	default:
	}
}

// Run connects and serves until ctx is done. After the maximum reconnect
// attempt count it parks until ResetBackoff is called.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.connectAndServe(ctx); err != nil {
			log.Printf("control: connection lost: %v", err)
		}
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		delay, ok := c.backoff.next()
		c.mu.Unlock()
		if !ok {
			log.Printf("control: giving up after %d reconnect attempts", config.MaxReconnectAttempts)
			select {
			case <-ctx.Done():
				return
			case <-c.resetCh:
				continue
			}
		}

		log.Printf("control: reconnecting in %s", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	c.setState(StateConnecting)
	conn, err := c.dial(ctx, c.endpoint)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}
	defer conn.Close()

	c.mu.Lock()
	c.state = StateConnected
	c.backoff.reset()
	c.mu.Unlock()
	log.Printf("control: connected to %s", c.endpoint)

	// Drop the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.setState(StateDisconnected)
			return err
		}
		c.serveMessage(ctx, conn, data)
	}
}

// serveMessage answers one inbound frame. Malformed or erroring requests get
// an error response; the socket stays open either way.
func (c *Client) serveMessage(ctx context.Context, conn *websocket.Conn, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("control: dropping malformed frame: %v", err)
		return
	}
	resp := c.dispatcher.Handle(ctx, req)
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("control: writing response %s: %v", req.ID, err)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// backoff computes reconnect delays: min(base·2^attempts, cap), stopping
// after maxAttempts until reset.
type backoff struct {
	base        time.Duration
	cap         time.Duration
	maxAttempts int
	attempts    int
}

func (b *backoff) next() (time.Duration, bool) {
	if b.attempts >= b.maxAttempts {
		return 0, false
	}
	delay := b.base << uint(b.attempts)
	if delay <= 0 || delay > b.cap {
		delay = b.cap
	}
	b.attempts++
	return delay, true
}

func (b *backoff) reset() { b.attempts = 0 }
