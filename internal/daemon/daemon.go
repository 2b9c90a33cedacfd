package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"inkframe/internal/logging"
)

// ErrAlreadyRunning reports that another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another inkframe server instance is already running")

const (
	shutdownTimeout            = 5 * time.Second
	defaultMaintenanceInterval = time.Hour
)

// Options wires a Daemon.
type Options struct {
	Bind     string
	LockPath string
	Handler  http.Handler
	Logger   *slog.Logger
	// Maintenance runs once at start and then every MaintenanceInterval.
	Maintenance         func(ctx context.Context)
	MaintenanceInterval time.Duration
}

// Daemon serves HTTP under an exclusive instance lock.
type Daemon struct {
	bind        string
	logger      *slog.Logger
	handler     http.Handler
	maintenance func(ctx context.Context)
	interval    time.Duration

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	cancel   context.CancelFunc
	done     chan struct{}
	running  atomic.Bool
}

// New validates opts and constructs a daemon.
func New(opts Options) (*Daemon, error) {
	if opts.Handler == nil {
		return nil, errors.New("daemon requires an http handler")
	}
	bind := strings.TrimSpace(opts.Bind)
	if bind == "" {
		return nil, errors.New("daemon requires a bind address")
	}
	if strings.TrimSpace(opts.LockPath) == "" {
		return nil, errors.New("daemon requires a lock path")
	}
	interval := opts.MaintenanceInterval
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	return &Daemon{
		bind:        bind,
		logger:      logging.NewComponentLogger(opts.Logger, "daemon"),
		handler:     opts.Handler,
		maintenance: opts.Maintenance,
		interval:    interval,
		lockPath:    opts.LockPath,
		lock:        flock.New(opts.LockPath),
	}, nil
}

// Start acquires the instance lock, binds the listener and begins serving.
// It returns once the listener is accepting connections.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", d.bind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("listen on %s: %w", d.bind, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.listener = listener
	d.cancel = cancel
	d.done = make(chan struct{})
	d.server = &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(d.logger, "http server error", "server_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check server.bind and restart"),
			)
		}
	}()
	go func() {
		defer wg.Done()
		d.maintain(runCtx)
	}()
	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = d.server.Shutdown(shutdownCtx)
		wg.Wait()
		close(d.done)
	}()

	d.running.Store(true)
	d.logger.Info("inkframe server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "server_started"),
	)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (d *Daemon) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Running reports whether the daemon is serving.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Stop shuts the server down gracefully and releases the instance lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.cancel()
	<-d.done
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release instance lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report a running instance"),
		)
	}
	d.listener = nil
	d.server = nil
	d.cancel = nil
	d.running.Store(false)
	d.logger.Info("inkframe server stopped", logging.String(logging.FieldEventType, "server_stopped"))
}

// Wait blocks until the server has shut down after ctx cancellation or Stop.
func (d *Daemon) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (d *Daemon) maintain(ctx context.Context) {
	if d.maintenance == nil {
		return
	}
	d.maintenance(ctx)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.maintenance(ctx)
		}
	}
}
