// Package xmonitor 运行时监控
// /metrics prometheus指标, /actors 当前快照(json), /ws 按周期推送快照
package xmonitor

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/camilohaze/vela-sub010/pkg/xcommon"
	"github.com/camilohaze/vela-sub010/pkg/xlog"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	PathMetrics = "/metrics"
	PathActors  = "/actors"
	PathWS      = "/ws"
)

type Args struct {
	Addr     string // 监听地址, 端口为0时随机分配
	Interval time.Duration
	Source   Source
	Gatherer prometheus.Gatherer // 为空时使用prometheus.DefaultGatherer
}

type Server struct {
	args     Args
	listener net.Listener
	upgrader *websocket.Upgrader
	httpSrv  *http.Server
	wg       xcommon.WaitGroup
	closeCh  chan struct{}
	once     sync.Once

	mu      sync.Mutex
	clients map[*client]bool // 所有的active连接
}

func New(ctx context.Context, args Args) (*Server, error) {
	if args.Source == nil {
		return nil, errors.New("monitor source is nil")
	}
	if args.Interval <= 0 {
		args.Interval = time.Second
	}
	if args.Gatherer == nil {
		args.Gatherer = prometheus.DefaultGatherer
	}
	ln, err := net.Listen("tcp", args.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "monitor listen %s", args.Addr)
	}

	svr := &Server{
		args:     args,
		listener: ln,
		upgrader: &websocket.Upgrader{},
		closeCh:  make(chan struct{}),
		clients:  make(map[*client]bool),
	}
	mux := http.NewServeMux()
	mux.Handle(PathMetrics, promhttp.HandlerFor(args.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc(PathActors, svr.handleActors)
	mux.HandleFunc(PathWS, svr.handleWS)

	ctx = xlog.NewContext(ctx, zap.String("monitor", ln.Addr().String()))
	svr.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			// 把传入的context作为每个request的基础context
			return ctx
		},
	}

	svr.wg.Add(2)
	go svr.serve(ctx)
	go svr.broadcastLoop(ctx)
	xlog.Get(ctx).Info("Monitor start success.")
	return svr, nil
}

func (svr *Server) Addr() string {
	return svr.listener.Addr().String()
}

func (svr *Server) serve(ctx context.Context) {
	defer svr.wg.Done(ctx)
	if err := svr.httpSrv.Serve(svr.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		xlog.Get(ctx).Error("Monitor serve failed.", zap.Error(err))
	}
}

func (svr *Server) handleActors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(TakeSnapshot(svr.args.Source)); err != nil {
		xlog.Get(r.Context()).Warn("Encode snapshot failed.", zap.Error(err))
	}
}

func (svr *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := svr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		xlog.Get(ctx).Warn("Upgrade connection failed.", zap.Error(err))
		// upgrader will respond
		return
	}

	id := gonanoid.Must(10)
	ctx = xlog.NewContext(ctx, zap.String("client", id))
	c := newClient(ctx, id, conn)
	if !svr.addClient(c) {
		c.close()
		return
	}
	// 连接后立即推送一次
	if data, err := svr.encode(); err == nil {
		_ = c.send(data)
	}
	xlog.Get(ctx).Debug("Monitor client connected.")

	c.waitUntilClose()

	svr.delClient(c)
	xlog.Get(ctx).Debug("Monitor client disconnected.")
}

func (svr *Server) encode() ([]byte, error) {
	return json.Marshal(TakeSnapshot(svr.args.Source))
}

func (svr *Server) broadcastLoop(ctx context.Context) {
	defer svr.wg.Done(ctx)
	ticker := time.NewTicker(svr.args.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-svr.closeCh:
			return
		case <-ticker.C:
		}
		if svr.ClientCount() == 0 {
			continue
		}
		data, err := svr.encode()
		if err != nil {
			xlog.Get(ctx).Warn("Encode snapshot failed.", zap.Error(err))
			continue
		}
		svr.broadcast(ctx, data)
	}
}

func (svr *Server) broadcast(ctx context.Context, data []byte) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	for c := range svr.clients {
		if err := c.send(data); err != nil && !errors.Is(err, errClientClosed) {
			xlog.Get(ctx).Debug("Drop snapshot.", zap.String("client", c.id), zap.Error(err))
		}
	}
}

func (svr *Server) ClientCount() int {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	return len(svr.clients)
}

// 关闭后不再接受新连接
func (svr *Server) addClient(c *client) bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	select {
	case <-svr.closeCh:
		return false
	default:
	}
	svr.clients[c] = true
	return true
}

func (svr *Server) delClient(c *client) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	delete(svr.clients, c)
}

// 可重复调用
func (svr *Server) Close(ctx context.Context) error {
	var err error
	svr.once.Do(func() {
		svr.mu.Lock()
		close(svr.closeCh)
		clients := make([]*client, 0, len(svr.clients))
		for c := range svr.clients {
			clients = append(clients, c)
		}
		svr.mu.Unlock()

		for _, c := range clients {
			c.close()
		}
		// hijack后的websocket连接不受Shutdown管理, 已在上面关闭
		err = svr.httpSrv.Shutdown(ctx)
		svr.wg.Wait()
		xlog.Get(ctx).Info("Monitor close success.")
	})
	return err
}
