//go:build !windows && !riscv64 && !loong64

package tcp

import (
	"strings"
	"sync"
	"time"

	"github.com/marten-seemann/tcp"
	"github.com/mikioh/tcpinfo"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/prometheus/client_golang/prometheus"
)

const collectFrequency = 10 * time.Second

var (
	newConns    *prometheus.CounterVec
	closedConns *prometheus.CounterVec

	rttsDesc          *prometheus.Desc
	connDurationsDesc *prometheus.Desc

	initMetricsOnce sync.Once
)

func initMetrics() {
	const direction = "direction"
	newConns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tcp_connections_new_total",
		Help: "TCP new connections",
	}, []string{direction})
	prometheus.MustRegister(newConns)

	closedConns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tcp_connections_closed_total",
		Help: "TCP connections closed",
	}, []string{direction})
	prometheus.MustRegister(closedConns)
}

// aggregatingCollector periodically samples per-connection TCP_INFO
// (via mikioh/tcpinfo) to expose round-trip time and connection age
// as Prometheus histograms.
type aggregatingCollector struct {
	cronOnce sync.Once

	mu            sync.Mutex
	highestID     uint64
	conns         map[uint64]*tracingConn
	rtts          prometheus.Histogram
	connDurations prometheus.Histogram
}

var _ prometheus.Collector = (*aggregatingCollector)(nil)

func newAggregatingCollector() *aggregatingCollector {
	initMetricsOnce.Do(initMetrics)
	return &aggregatingCollector{
		conns: make(map[uint64]*tracingConn),
		rtts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tcp_rtt",
			Help:    "TCP round trip time",
			Buckets: prometheus.ExponentialBuckets(0.001, 1.25, 40),
		}),
		connDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tcp_connection_duration",
			Help:    "TCP connection duration",
			Buckets: prometheus.ExponentialBuckets(1, 1.5, 40),
		}),
	}
}

func (c *aggregatingCollector) AddConn(t *tracingConn) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.highestID++
	c.conns[c.highestID] = t
	return c.highestID
}

func (c *aggregatingCollector) removeConn(id uint64) {
	delete(c.conns, id)
}

func (c *aggregatingCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.rtts.Desc()
	descs <- c.connDurations.Desc()
}

func (c *aggregatingCollector) cron() {
	ticker := time.NewTicker(collectFrequency)
	defer ticker.Stop()
	for now := range ticker.C {
		c.gatherMetrics(now)
	}
}

func (c *aggregatingCollector) gatherMetrics(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		info, err := conn.getTCPInfo()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				continue
			}
			log.Debugf("failed to get TCP info: %s", err)
			continue
		}
		c.rtts.Observe(info.RTT.Seconds())
		c.connDurations.Observe(now.Sub(conn.startTime).Seconds())
	}
}

func (c *aggregatingCollector) Collect(metrics chan<- prometheus.Metric) {
	c.cronOnce.Do(func() {
		c.gatherMetrics(time.Now())
		go c.cron()
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	metrics <- c.rtts
	metrics <- c.connDurations
}

func (c *aggregatingCollector) ClosedConn(conn *tracingConn, direction string) {
	c.mu.Lock()
	c.removeConn(conn.id)
	c.mu.Unlock()
	closedConns.WithLabelValues(direction).Inc()
}

type tracingConn struct {
	id        uint64
	collector *aggregatingCollector
	startTime time.Time
	isClient  bool

	manet.Conn
	tcpConn   *tcp.Conn
	closeOnce sync.Once
	closeErr  error
}

func newTracingConn(c manet.Conn, collector *aggregatingCollector, isClient bool) (*tracingConn, error) {
	initMetricsOnce.Do(initMetrics)
	conn, err := tcp.NewConn(c)
	if err != nil {
		return nil, err
	}
	tc := &tracingConn{
		startTime: time.Now(),
		isClient:  isClient,
		Conn:      c,
		tcpConn:   conn,
		collector: collector,
	}
	tc.id = tc.collector.AddConn(tc)
	newConns.WithLabelValues(tc.getDirection()).Inc()
	return tc, nil
}

func (c *tracingConn) getDirection() string {
	if c.isClient {
		return "outgoing"
	}
	return "incoming"
}

func (c *tracingConn) Close() error {
	c.closeOnce.Do(func() {
		c.collector.ClosedConn(c, c.getDirection())
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}

func (c *tracingConn) getTCPInfo() (*tcpinfo.Info, error) {
	var o tcpinfo.Info
	var b [256]byte
	i, err := c.tcpConn.Option(o.Level(), o.Name(), b[:])
	if err != nil {
		return nil, err
	}
	return i.(*tcpinfo.Info), nil
}
