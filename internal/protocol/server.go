package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrServerClosed = errors.New("protocol: server closed")

// ErrPeerStalled is returned by Send when the driver stopped reading and was
// disconnected.
var ErrPeerStalled = errors.New("protocol: driver not reading, disconnected")

const (
	// DefaultWriteTimeout bounds a single write to the driver.
	DefaultWriteTimeout = 5 * time.Second

	peerQueue = 64
)

// Handler receives every well-formed message from the driver. It runs on the
// connection's reader goroutine.
type Handler func(Inbound)

// Server owns the canvas end of the socket. At most one driver is attached
// at a time: a newer connection supersedes the previous one, which is
// closed. Outbound messages go to the current peer only and are written by
// the peer's own goroutine, so Send never waits on the socket.
type Server struct {
	path    string
	handler Handler
	log     zerolog.Logger
	ln      net.Listener

	writeTimeout time.Duration

	mu     sync.Mutex
	peer   *peer
	closed bool
	wg     sync.WaitGroup
}

// peer is one attached driver. out is closed, under Server.mu, exactly once.
type peer struct {
	conn   net.Conn
	out    chan []byte
	closed bool
}

// Listen binds a unix socket at path. A stale socket file left by a previous
// run is removed first.
func Listen(path string, handler Handler, log zerolog.Logger) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if handler == nil {
		handler = func(Inbound) {}
	}
	return &Server{
		path:         path,
		handler:      handler,
		log:          log.With().Str("socket", path).Logger(),
		ln:           ln,
		writeTimeout: DefaultWriteTimeout,
	}, nil
}

func (s *Server) Path() string { return s.path }

// Serve accepts connections until ctx is done or Close is called. It always
// returns a non-nil error; after Close that error is ErrServerClosed.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			return fmt.Errorf("accept: %w", err)
		}
		p := &peer{conn: conn, out: make(chan []byte, peerQueue)}
		if !s.adopt(p) {
			_ = conn.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.wg.Done()
			s.write(p)
		}()
		go func() {
			defer s.wg.Done()
			s.read(p)
		}()
	}
}

// adopt makes p the current peer and queues ready for it. The previous peer
// is detached; its queued messages are still flushed before it is closed.
// On success the caller must start p's writer and reader.
func (s *Server) adopt(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if old := s.peer; old != nil {
		s.log.Debug().Msg("driver superseded by new connection")
		s.detachLocked(old)
	}
	s.peer = p
	s.wg.Add(2)
	if err := s.enqueueLocked(p, Ready()); err != nil {
		s.log.Warn().Err(err).Msg("send ready")
	}
	s.log.Info().Msg("driver connected")
	return true
}

// write drains p.out onto the connection and closes it once the queue is
// closed or a write fails.
func (s *Server) write(p *peer) {
	defer p.conn.Close()
	for data := range p.out {
		if s.writeTimeout > 0 {
			_ = p.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		if _, err := p.conn.Write(data); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn().Err(err).Msg("write to driver, disconnecting")
			}
			return
		}
	}
}

func (s *Server) read(p *peer) {
	defer s.drop(p)

	framer := NewFramer(DefaultMaxLine)
	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			lines, ferr := framer.Feed(buf[:n])
			if ferr != nil {
				s.log.Warn().Err(ferr).Msg("discarding oversized message")
			}
			for _, line := range lines {
				if !s.current(p) {
					s.log.Debug().Msg("ignoring message from superseded driver")
					return
				}
				msg, derr := DecodeInbound(line)
				if derr != nil {
					s.log.Warn().Err(derr).Bytes("line", line).Msg("discarding malformed message")
					continue
				}
				s.log.Debug().Str("type", string(msg.Type)).Msg("received")
				s.handler(msg)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug().Err(err).Msg("read")
			}
			return
		}
	}
}

func (s *Server) current(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer == p
}

// drop runs when the driver hung up. Anything still queued for it is lost.
func (s *Server) drop(p *peer) {
	s.mu.Lock()
	if s.peer == p {
		s.peer = nil
		s.log.Info().Msg("driver disconnected")
	}
	s.detachLocked(p)
	s.mu.Unlock()
	_ = p.conn.Close()
}

func (s *Server) detachLocked(p *peer) {
	if !p.closed {
		p.closed = true
		close(p.out)
	}
}

func (s *Server) enqueueLocked(p *peer, msg Outbound) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	select {
	case p.out <- data:
		return nil
	default:
	}
	// queue full: the driver stopped reading
	if s.peer == p {
		s.peer = nil
	}
	s.detachLocked(p)
	_ = p.conn.Close()
	return fmt.Errorf("write %s: %w", msg.Type, ErrPeerStalled)
}

// Send queues msg for the current peer. With no peer attached it is a no-op.
// It never blocks on the socket; a peer whose queue is full is disconnected
// and ErrPeerStalled is returned.
func (s *Server) Send(msg Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil {
		s.log.Debug().Str("type", string(msg.Type)).Msg("no driver attached, dropping message")
		return nil
	}
	return s.enqueueLocked(s.peer, msg)
}

// Connected reports whether a driver is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer != nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting, flushes and disconnects the peer, and removes the
// socket file. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	err := s.ln.Close()
	if s.peer != nil {
		s.detachLocked(s.peer)
		s.peer = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	if rerr := os.Remove(s.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
		err = rerr
	}
	return err
}
