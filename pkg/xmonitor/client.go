package xmonitor

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	writeTimeout   = 10 * time.Second // 写超时时间
	pongTimeout    = 60 * time.Second // 读超时时间, 收到pong后续期
	maxMessageSize = 512              // 客户端只发送控制帧
	writeChanLimit = 16               // 写channel大小, 慢客户端丢弃快照
)

var (
	errClientClosed = errors.New("client already closed")
	errOverflow     = errors.New("client write overflow")
)

// 订阅快照的websocket连接
type client struct {
	id      string
	conn    *websocket.Conn
	writeCh chan []byte

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        xcommon.WaitGroup
}

func newClient(ctx context.Context, id string, conn *websocket.Conn) *client {
	c := &client{
		id:      id,
		conn:    conn,
		writeCh: make(chan []byte, writeChanLimit),
		closeCh: make(chan struct{}),
	}
	c.conn.SetReadLimit(maxMessageSize)

	c.wg.Add(2)
	go c.readLoop(ctx)
	go c.writeLoop(ctx)
	return c
}

// 只用于感知断开和续期读超时
func (c *client) readLoop(ctx context.Context) {
	var readErr error
	defer func() {
		if readErr != nil {
			xlog.Get(ctx).Warn("Read loop exit with error.", zap.Error(readErr))
		}
		c.forceClose()
	}()
	defer c.wg.Done(ctx)

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongTimeout)); err != nil {
			readErr = err
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				readErr = err
			}
			return
		}
	}
}

func (c *client) writeLoop(ctx context.Context) {
	var writeErr error
	defer func() {
		if writeErr != nil {
			xlog.Get(ctx).Warn("Write loop exit with error.", zap.Error(writeErr))
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err != nil &&
			err != websocket.ErrCloseSent && !errors.Is(err, net.ErrClosed) {
			xlog.Get(ctx).Debug("Write close message failed.", zap.Error(err))
		}
		_ = c.conn.Close()
	}()
	defer c.wg.Done(ctx)

	for {
		var msg []byte
		select {
		case msg = <-c.writeCh:
		case <-c.closeCh:
			return
		}
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			writeErr = err
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			writeErr = err
			return
		}
	}
}

func (c *client) send(msg []byte) error {
	select {
	case <-c.closeCh:
		return errClientClosed
	default:
	}
	select {
	case c.writeCh <- msg:
		return nil
	case <-c.closeCh:
		return errClientClosed
	default:
		return errOverflow
	}
}

func (c *client) close() {
	c.forceClose()
	c.wg.Wait()
}

func (c *client) forceClose() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
}

func (c *client) waitUntilClose() {
	c.wg.Wait()
}
