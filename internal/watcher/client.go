// Package watcher ingests on-chain payment events from a Kaspa node
// and feeds them to the settlement engine.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// ClientConfig configures node websocket behavior.
type ClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultClientConfig returns default node websocket configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// UTXOEntry is one payment output reported by an utxosChanged
// notification, with verbose transaction data requested at
// subscription time.
type UTXOEntry struct {
	TxID          string `json:"txId"`
	Address       string `json:"address"`
	Amount        int64  `json:"amount"` // sompi
	SenderAddress string `json:"senderAddress"`
	DAAScore      int64  `json:"daaScore"`
	BlockTime     int64  `json:"blockTime"` // unix millis
}

// Notification is one decoded node notification.
type Notification struct {
	Method   string
	UTXOs    []UTXOEntry // utxosChanged
	DAAScore int64       // virtualDaaScoreChanged
}

// Client is a Kaspa node websocket client. It reconnects with
// exponential backoff and resubscribes tracked addresses after
// reconnect. All notifications are delivered on a single channel.
type Client struct {
	endpoint string
	config   ClientConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// tracked addresses for resubscription after reconnect
	tracked   map[string]bool
	trackedMu sync.Mutex

	notifications chan Notification
	dialLimiter   *rate.Limiter

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool

	// OnReconnect is invoked on every reconnect attempt; optional.
	OnReconnect func()
}

// NewClient creates a node client and connects to the endpoint.
func NewClient(ctx context.Context, endpoint string, config *ClientConfig, logger *log.Logger) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		endpoint:      endpoint,
		config:        cfg,
		logger:        logger,
		tracked:       make(map[string]bool),
		notifications: make(chan Notification, 1000),
		// rogue node restarts must not turn into a dial storm
		dialLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Notifications returns the merged notification stream. The channel is
// closed by Close.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

func (c *Client) connect(ctx context.Context) error {
	if err := c.dialLimiter.Wait(ctx); err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeUTXOs subscribes to UTXO changes for the given addresses and
// remembers them for resubscription after reconnect.
func (c *Client) SubscribeUTXOs(ctx context.Context, addresses []string) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}
	if len(addresses) == 0 {
		return nil
	}

	if err := c.send(wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "subscribeUtxosChanged",
		Params:  map[string]any{"addresses": addresses, "includeSenderData": true},
	}); err != nil {
		return err
	}

	c.trackedMu.Lock()
	for _, addr := range addresses {
		c.tracked[addr] = true
	}
	c.trackedMu.Unlock()
	return nil
}

// UnsubscribeUTXOs stops UTXO notifications for the given addresses.
func (c *Client) UnsubscribeUTXOs(ctx context.Context, addresses []string) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}
	if len(addresses) == 0 {
		return nil
	}

	if err := c.send(wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "unsubscribeUtxosChanged",
		Params:  map[string]any{"addresses": addresses},
	}); err != nil {
		return err
	}

	c.trackedMu.Lock()
	for _, addr := range addresses {
		delete(c.tracked, addr)
	}
	c.trackedMu.Unlock()
	return nil
}

// SubscribeVirtualDAAScore subscribes to virtual DAA score updates,
// which drive confirmation depth accounting.
func (c *Client) SubscribeVirtualDAAScore(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}
	return c.send(wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "subscribeVirtualDaaScoreChanged",
	})
}

func (c *Client) send(req wsRequest) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// Close closes the connection and the notification channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.notifications)
	return nil
}

// readLoop reads messages from the node and dispatches notifications.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe tracked addresses.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}
	if c.OnReconnect != nil {
		c.OnReconnect()
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Printf("[watcher] reconnect failed: %v", err)
		return
	}

	c.resubscribeAll(ctx)
}

func (c *Client) resubscribeAll(ctx context.Context) {
	c.trackedMu.Lock()
	addresses := make([]string, 0, len(c.tracked))
	for addr := range c.tracked {
		addresses = append(addresses, addr)
	}
	c.trackedMu.Unlock()

	if err := c.SubscribeVirtualDAAScore(ctx); err != nil {
		c.logger.Printf("[watcher] resubscribe DAA score: %v", err)
	}
	if len(addresses) == 0 {
		return
	}
	if err := c.SubscribeUTXOs(ctx, addresses); err != nil {
		c.logger.Printf("[watcher] resubscribe %d addresses: %v", len(addresses), err)
	}
}

// handleMessage decodes an incoming node message and forwards
// notifications. Request responses and unknown methods are ignored.
func (c *Client) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil {
		return
	}

	switch notif.Method {
	case "utxosChangedNotification":
		var params utxosChangedParams
		if err := json.Unmarshal(notif.Params, &params); err != nil {
			c.logger.Printf("[watcher] bad utxosChanged payload: %v", err)
			return
		}
		c.dispatch(Notification{Method: "utxosChanged", UTXOs: params.Added})
	case "virtualDaaScoreChangedNotification":
		var params daaScoreParams
		if err := json.Unmarshal(notif.Params, &params); err != nil {
			c.logger.Printf("[watcher] bad daaScore payload: %v", err)
			return
		}
		c.dispatch(Notification{Method: "virtualDaaScoreChanged", DAAScore: params.VirtualDaaScore})
	}
}

func (c *Client) dispatch(n Notification) {
	// Block until delivered - never drop on-chain events
	select {
	case c.notifications <- n:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
					c.logger.Printf("[watcher] ping: %v", err)
				}
			}
			c.connMu.Unlock()
		}
	}
}

// Node wire types

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type wsNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type utxosChangedParams struct {
	Added   []UTXOEntry `json:"added"`
	Removed []UTXOEntry `json:"removed"`
}

type daaScoreParams struct {
	VirtualDaaScore int64 `json:"virtualDaaScore"`
}
