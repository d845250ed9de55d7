package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/pkg/config"
	"github.com/wonny/helios/backend/pkg/logger"
)

const (
	// MaxWSSymbols is the KIS per-connection subscription limit
	MaxWSSymbols = 40

	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 5 * time.Minute

	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	// trIDTick is the domestic stock execution tick stream
	trIDTick = "H0STCNT0"
)

// TickHandler receives each parsed tick from the stream.
type TickHandler func(quote *contracts.Quote)

// WSFeed streams live execution ticks over the KIS WebSocket.
// 구독 심볼은 최대 40개. 지수 구성종목 수가 한도를 넘으면 REST 폴링으로 보충.
// ⭐ SSOT: KIS WebSocket 연결 관리는 여기서만
type WSFeed struct {
	cfg     config.KISConfig
	logger  *logger.Logger
	handler TickHandler

	conn   *websocket.Conn
	connMu sync.RWMutex

	symbols   map[string]bool
	symbolsMu sync.RWMutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWSFeed creates a new tick feed
func NewWSFeed(cfg config.KISConfig, log *logger.Logger, handler TickHandler) *WSFeed {
	return &WSFeed{
		cfg:     cfg,
		logger:  log,
		handler: handler,
		symbols: make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start connects and begins streaming
func (f *WSFeed) Start(ctx context.Context) error {
	f.logger.Info("Starting KIS WebSocket feed")

	if err := f.connect(ctx); err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	go f.readLoop(ctx)
	go f.pingLoop(ctx)

	return nil
}

// Stop closes the connection and waits for the read loop to exit
func (f *WSFeed) Stop() {
	f.logger.Info("Stopping KIS WebSocket feed")

	close(f.stopCh)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	<-f.doneCh
}

// Subscribe replaces the tracked symbol set. Beyond MaxWSSymbols the
// extra tickers are dropped with a warning.
func (f *WSFeed) Subscribe(tickers []string) {
	if len(tickers) > MaxWSSymbols {
		f.logger.WithFields(map[string]interface{}{
			"requested": len(tickers),
			"limit":     MaxWSSymbols,
		}).Warn("Symbol count exceeds WebSocket limit, truncating")
		tickers = tickers[:MaxWSSymbols]
	}

	f.symbolsMu.Lock()
	f.symbols = make(map[string]bool, len(tickers))
	for _, t := range tickers {
		f.symbols[t] = true
	}
	f.symbolsMu.Unlock()

	f.connMu.RLock()
	defer f.connMu.RUnlock()
	if f.conn == nil {
		return
	}
	for _, t := range tickers {
		if err := f.sendSubscribe(t); err != nil {
			f.logger.WithError(err).WithField("ticker", t).Warn("Subscribe failed")
		}
	}
}

func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	wsURL := fmt.Sprintf("%s/tryitout/%s", f.cfg.WSBaseURL, trIDTick)
	f.logger.WithField("url", wsURL).Debug("Connecting to KIS WebSocket")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	f.conn = conn
	f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPongHandler(func(string) error {
		f.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	f.logger.Info("Connected to KIS WebSocket")
	return nil
}

// subscribeRequest is the KIS subscription envelope
type subscribeRequest struct {
	Header struct {
		ApprovalKey string `json:"approval_key"`
		CustType    string `json:"custtype"`
		TrType      string `json:"tr_type"` // "1" = 등록
		ContentType string `json:"content-type"`
	} `json:"header"`
	Body struct {
		Input struct {
			TrID  string `json:"tr_id"`
			TrKey string `json:"tr_key"`
		} `json:"input"`
	} `json:"body"`
}

func (f *WSFeed) sendSubscribe(ticker string) error {
	var req subscribeRequest
	req.Header.ApprovalKey = f.cfg.AppKey
	req.Header.CustType = "P"
	req.Header.TrType = "1"
	req.Header.ContentType = "utf-8"
	req.Body.Input.TrID = trIDTick
	req.Body.Input.TrKey = ticker

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	f.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return f.conn.WriteMessage(websocket.TextMessage, payload)
}

func (f *WSFeed) readLoop(ctx context.Context) {
	defer close(f.doneCh)

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		default:
		}

		f.connMu.RLock()
		conn := f.conn
		f.connMu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.stopCh:
				return
			default:
			}

			f.logger.WithError(err).Warn("WebSocket read failed, reconnecting")
			time.Sleep(delay)
			if delay < maxReconnectDelay {
				delay *= 2
			}
			if err := f.connect(ctx); err != nil {
				f.logger.WithError(err).Error("Reconnect failed")
				continue
			}
			delay = reconnectDelay
			f.resubscribe()
			continue
		}

		if quote := parseTickMessage(string(message)); quote != nil {
			f.handler(quote)
		}
	}
}

func (f *WSFeed) resubscribe() {
	f.symbolsMu.RLock()
	tickers := make([]string, 0, len(f.symbols))
	for t := range f.symbols {
		tickers = append(tickers, t)
	}
	f.symbolsMu.RUnlock()

	f.connMu.RLock()
	defer f.connMu.RUnlock()
	for _, t := range tickers {
		if err := f.sendSubscribe(t); err != nil {
			f.logger.WithError(err).WithField("ticker", t).Warn("Resubscribe failed")
		}
	}
}

func (f *WSFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.connMu.RLock()
			conn := f.conn
			f.connMu.RUnlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.logger.WithError(err).Warn("Ping failed")
			}
		}
	}
}

// parseTickMessage parses a raw tick frame. Data frames look like
// "0|H0STCNT0|001|<caret-separated fields>"; everything else
// (정상 응답/PINGPONG JSON) is ignored.
func parseTickMessage(message string) *contracts.Quote {
	if !strings.HasPrefix(message, "0|") {
		return nil
	}

	parts := strings.Split(message, "|")
	if len(parts) < 4 || parts[1] != trIDTick {
		return nil
	}

	fields := strings.Split(parts[3], "^")
	if len(fields) < 3 {
		return nil
	}

	price, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || price <= 0 {
		return nil
	}

	return &contracts.Quote{
		Ticker:    fields[0],
		Price:     price,
		Timestamp: time.Now(),
	}
}
