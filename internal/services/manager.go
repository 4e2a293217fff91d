package services

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tonglam/letletme-data-sub005/internal/utils/log"
)

type (
	SystemManager interface {
		Context() context.Context
		Logger() *zap.Logger
		ServiceContext() context.Context
		ServiceWaitGroup() *sync.WaitGroup
		State() ServiceState
		AddPreShutdownHook(PreShutdownHook)
		AddShutdownHook(ShutdownHook)
		WaitForInterrupt()
		Shutdown()
	}

	// ManagerOption allows the manager to be customized via options.
	ManagerOption func(*managerOpts)

	systemManager struct {
		mu    sync.RWMutex
		state ServiceState

		log *zap.Logger

		ctx              context.Context
		serviceCtx       context.Context
		serviceCtxCancel context.CancelFunc
		serviceWg        sync.WaitGroup
		shutdownHooks    []ShutdownHook
		preShutdownHooks []PreShutdownHook
		shutdownChannel  chan struct{}
	}

	managerOpts struct {
		logger      *zap.Logger
		rootContext context.Context
	}

	ServiceState int

	ShutdownHook    func()
	PreShutdownHook func()
)

const (
	// termDelay specifies the timeout after which the service will be forced to terminate.
	termDelay = time.Second * 20

	Starting ServiceState = iota + 1
	Running
	Stopping
	Terminated
)

// NewManager creates a new system manager.
func NewManager(opts ...ManagerOption) SystemManager {
	mOpts := managerOpts{
		rootContext: context.Background(),
	}
	for _, o := range opts {
		o(&mOpts)
	}
	if mOpts.logger == nil {
		mOpts.logger = log.New()
	}

	manager := &systemManager{
		shutdownChannel: make(chan struct{}),
		log:             mOpts.logger,
		state:           Starting,
	}

	manager.ctx = mOpts.rootContext
	manager.serviceCtx, manager.serviceCtxCancel = context.WithCancel(manager.ctx)

	return manager
}

// WithLogger allows the logger to be injected into the manager.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(mOpts *managerOpts) {
		mOpts.logger = logger
	}
}

// WithContext allows to set the root context instead of context.Background().
func WithContext(ctx context.Context) ManagerOption {
	return func(mOpts *managerOpts) {
		mOpts.rootContext = ctx
	}
}

// GracefulShutdown sets up a shutdown handler that calls killFunc when the process needs to clean up and terminate.
// killFunc will be executed at most once.
func GracefulShutdown(logger *zap.Logger, killFunc func()) {
	intCh := make(chan os.Signal, 1)
	signal.Notify(intCh, os.Interrupt, syscall.SIGTERM)
	var sigCount int
	go func() {
		for sig := range intCh {
			switch sigCount {
			case 0:
				go func() {
					logger.Info("shutdown requested", zap.String("signal", sig.String()))
					killFunc()
				}()
			case 1:
				logger.Info("delayed forced termination requested", zap.Duration("delay", termDelay), zap.String("signal", sig.String()))
				time.AfterFunc(termDelay, func() {
					os.Exit(2)
				})
			default:
				logger.Warn("forced termination requested", zap.String("signal", sig.String()))
				_ = logger.Sync()
				os.Exit(2)
			}
			sigCount++
		}
	}()
}

func (m *systemManager) Logger() *zap.Logger {
	return m.log
}

// ServiceContext returns a cancellable context derived from the background context.
func (m *systemManager) ServiceContext() context.Context {
	return m.serviceCtx
}

// State returns the current state of the manager.
func (m *systemManager) State() ServiceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *systemManager) setState(state ServiceState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// Context returns the background context.
func (m *systemManager) Context() context.Context {
	return m.ctx
}

func (m *systemManager) ServiceWaitGroup() *sync.WaitGroup {
	return &m.serviceWg
}

// Pre-shutdown hooks are run in parallel before canceling the service context.
func (m *systemManager) AddPreShutdownHook(hook PreShutdownHook) {
	m.preShutdownHooks = append(m.preShutdownHooks, hook)
}

// Shutdown hooks are run sequentially after canceling the service context.
func (m *systemManager) AddShutdownHook(hook ShutdownHook) {
	m.shutdownHooks = append(m.shutdownHooks, hook)
}

// Shutdown signals the manager to gracefully shutdown. You must have
// previously called WaitForInterrupt for Shutdown to have any effect.
func (m *systemManager) Shutdown() {
	select {
	case <-m.shutdownChannel:
		m.log.Info("manager is already shutdown")
	default:
		close(m.shutdownChannel)
	}
}

// WaitForInterrupt will block until either Shutdown is called or a signal is
// sent to shutdown the process. It will fire the appropriate shutdown hooks
// and cleanly shutdown the manager before it unblocks.
func (m *systemManager) WaitForInterrupt() {
	m.setState(Running)

	m.blockOnSignal()
	m.serviceWg.Wait()
	m.log.Debug("running shutdown hooks")
	for _, hook := range m.shutdownHooks {
		hook()
	}
	_ = m.log.Sync()
	m.setState(Terminated)
}

func (m *systemManager) blockOnSignal() {
	GracefulShutdown(m.log, m.Shutdown)

	<-m.shutdownChannel
	m.setState(Stopping)
	m.performPreShutdownHooks()
	m.log.Info("shutting down")
	m.serviceCtxCancel()
}

func (m *systemManager) performPreShutdownHooks() {
	m.log.Debug("running pre-shutdown hooks")
	var wg sync.WaitGroup
	wg.Add(len(m.preShutdownHooks))
	for _, hook := range m.preShutdownHooks {
		go func(hook PreShutdownHook) {
			defer wg.Done()
			hook()
		}(hook)
	}
	wg.Wait()
}
