package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-stomp/stomp/v3"

	"github.com/hive-corporation/reportsync/internal/config"
	"github.com/hive-corporation/reportsync/internal/core/domain"
)

// StompNotifier publishes to a STOMP queue. The connection is dialed on the
// first publish and reused for the rest of the run.
type StompNotifier struct {
	cfg  config.BrokerConfig
	mu   sync.Mutex
	conn *stomp.Conn
}

func NewStompNotifier(cfg config.BrokerConfig) *StompNotifier {
	return &StompNotifier{cfg: cfg}
}

func (n *StompNotifier) Publish(ctx context.Context, msg domain.NotificationMessage) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	conn, err := n.connect()
	if err != nil {
		return fmt.Errorf("stomp connect failed: %w", err)
	}
	if err := conn.Send(n.cfg.Queue, "application/json", payload); err != nil {
		return fmt.Errorf("stomp send to %s failed: %w", n.cfg.Queue, err)
	}
	return nil
}

func (n *StompNotifier) connect() (*stomp.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		return n.conn, nil
	}

	var opts []func(*stomp.Conn) error
	if n.cfg.User != "" && n.cfg.Password != "" {
		opts = append(opts, stomp.ConnOpt.Login(n.cfg.User, n.cfg.Password))
	}
	conn, err := stomp.Dial("tcp", n.cfg.Addr(), opts...)
	if err != nil {
		return nil, err
	}
	n.conn = conn
	return conn, nil
}

func (n *StompNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Disconnect()
	n.conn = nil
	return err
}
