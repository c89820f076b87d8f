package broadcast

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Amani-Ishimwe/RFID/internal/metrics"
)

const (
	commandTimeout  = 5 * time.Second
	stopTimeout     = 10 * time.Second
	commandCapacity = 256
)

var (
	ErrRegistryFull    = errors.New("max connections reached")
	ErrRegistryStopped = errors.New("registry stopped")
)

// Handle identifies a registered connection.
type Handle uuid.UUID

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type registerCmd struct {
	baseRegistryCmd
	connection *websocket.Conn
	reply      chan registerReply
}

type registerReply struct {
	handle Handle
	err    error
}

type unregisterCmd struct {
	baseRegistryCmd
	handle Handle
}

// writerFailedCmd is sent by a writer whose connection could not be written to.
type writerFailedCmd struct {
	baseRegistryCmd
	handle Handle
	writer *clientWriter
	err    error
}

type broadcastCmd struct {
	baseRegistryCmd
	data []byte
}

type clientCountCmd struct {
	baseRegistryCmd
	reply chan int
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry owns the set of open viewer connections.
type Registry struct {
	cmdCh       chan registryCmd
	clock       clockwork.Clock
	clients     map[Handle]*clientWriter
	metrics     *metrics.WebSocketMetrics
	maxClients  int
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

// NewRegistry starts the registry actor. maxClients caps the number of
// concurrently registered connections.
func NewRegistry(clock clockwork.Clock, m *metrics.WebSocketMetrics, maxClients int) *Registry {
	r := newRegistry(clock, m, maxClients)
	go r.run()
	return r
}

func newRegistry(clock clockwork.Clock, m *metrics.WebSocketMetrics, maxClients int) *Registry {
	return &Registry{
		cmdCh:       make(chan registryCmd, commandCapacity),
		clock:       clock,
		clients:     make(map[Handle]*clientWriter),
		metrics:     m,
		maxClients:  maxClients,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
}

// Register adds an upgraded connection and starts its writer. The registry
// takes ownership of the connection's write side.
func (r *Registry) Register(conn *websocket.Conn) (Handle, error) {
	reply := make(chan registerReply, 1)
	if !r.send(registerCmd{connection: conn, reply: reply}) {
		return Handle{}, ErrRegistryStopped
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case res := <-reply:
		return res.handle, res.err
	case <-r.done:
		return Handle{}, ErrRegistryStopped
	case <-timer.Chan():
		// The actor may still add the connection after we give up on it.
		go r.discardLateRegistration(reply)
		return Handle{}, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// discardLateRegistration removes a connection whose Register call already
// returned a timeout, so no writer outlives its caller.
func (r *Registry) discardLateRegistration(reply <-chan registerReply) {
	select {
	case res := <-reply:
		if res.err == nil {
			slog.Warn("Dropping client registered after timeout", "handle", res.handle.String())
			r.Unregister(res.handle)
		}
	case <-r.done:
	}
}

// Unregister removes a connection and releases its resources. Unknown or
// already removed handles are ignored.
func (r *Registry) Unregister(handle Handle) {
	r.send(unregisterCmd{handle: handle})
}

// Broadcast queues data for every open connection. A connection whose queue
// is full is evicted; others are unaffected. With no connections it does
// nothing.
func (r *Registry) Broadcast(data []byte) {
	r.send(broadcastCmd{data: data})
}

// ClientCount returns the number of registered connections, or -1 if the
// actor does not answer in time.
func (r *Registry) ClientCount() int {
	reply := make(chan int, 1)
	if !r.send(clientCountCmd{reply: reply}) {
		return 0
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-reply:
		return count
	case <-r.done:
		return 0
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every connection with a close frame and shuts the actor down.
// Safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		if !r.send(stopCmd{}) {
			return
		}

		timeout := r.clock.NewTimer(r.stopTimeout)
		defer timeout.Stop()

		select {
		case <-r.done:
			slog.Info("Registry stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Registry stop timeout exceeded", "timeout", r.stopTimeout)
		}
	})
}

func (r *Registry) send(cmd registryCmd) bool {
	select {
	case r.cmdCh <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Registry) run() {
	defer close(r.done)
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Registry panic recovered", "panic", p)
			r.closeAllClients("internal error")
		}
	}()

	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			r.handleRegister(c)
		case unregisterCmd:
			r.remove(c.handle, "client disconnected")
		case writerFailedCmd:
			r.handleWriterFailed(c)
		case broadcastCmd:
			r.handleBroadcast(c.data)
		case clientCountCmd:
			c.reply <- len(r.clients)
		case stopCmd:
			r.handleStop()
			return
		default:
			slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (r *Registry) handleRegister(c registerCmd) {
	if len(r.clients) >= r.maxClients {
		slog.Warn("Rejecting client: max connections reached", "max_clients", r.maxClients)
		r.metrics.RejectedConnections.WithLabelValues("capacity").Inc()
		closeMsg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server at capacity")
		_ = c.connection.WriteControl(websocket.CloseMessage, closeMsg, r.clock.Now().Add(writeDeadline))
		_ = c.connection.Close()
		c.reply <- registerReply{err: ErrRegistryFull}
		return
	}

	handle := Handle(uuid.New())
	r.clients[handle] = newClientWriter(c.connection, r.clock, r.metrics, func(w *clientWriter, err error) {
		// Runs on the writer goroutine; must not block on the actor.
		go r.send(writerFailedCmd{handle: handle, writer: w, err: err})
	})
	r.metrics.ActiveConnections.Set(float64(len(r.clients)))

	slog.Debug("Client registered", "handle", handle.String(), "total_clients", len(r.clients))
	c.reply <- registerReply{handle: handle}
}

func (r *Registry) handleWriterFailed(c writerFailedCmd) {
	// The handle may already be gone or, in theory, reused by a newer writer.
	if cw, ok := r.clients[c.handle]; !ok || cw != c.writer {
		return
	}
	r.metrics.SendFailures.Inc()
	slog.Info("Removing client after failed write", "handle", c.handle.String(), "error", c.err)
	r.remove(c.handle, "send failed")
}

func (r *Registry) handleBroadcast(data []byte) {
	if len(r.clients) == 0 {
		return
	}
	r.metrics.Broadcasts.Inc()

	var slow []Handle
	queued := 0
	for handle, cw := range r.clients {
		if !cw.open() {
			continue
		}
		select {
		case cw.sendChannel <- data:
			queued++
		default:
			slow = append(slow, handle)
		}
	}
	r.metrics.MessagesQueued.Add(float64(queued))

	for _, handle := range slow {
		slog.Warn("Disconnecting slow client", "handle", handle.String())
		r.metrics.SlowClientsEvicted.Inc()
		r.remove(handle, "slow client")
	}
}

func (r *Registry) remove(handle Handle, reason string) {
	cw, ok := r.clients[handle]
	if !ok {
		return
	}

	cw.stop()
	delete(r.clients, handle)
	r.metrics.ActiveConnections.Set(float64(len(r.clients)))

	slog.Debug("Client unregistered", "handle", handle.String(), "reason", reason, "remaining_clients", len(r.clients))
}

func (r *Registry) handleStop() {
	total := len(r.clients)
	slog.Info("Registry shutting down", "total_clients", total)

	r.closeAllClients("Server shutting down")

	slog.Info("Registry shutdown complete", "disconnected_clients", total)
}

// closeAllClients sends each connection a close frame with reason and drops it.
func (r *Registry) closeAllClients(reason string) {
	for handle, cw := range r.clients {
		cw.stopGraceful(reason)
		delete(r.clients, handle)
	}
	r.metrics.ActiveConnections.Set(0)
}
