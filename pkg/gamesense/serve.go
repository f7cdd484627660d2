package gamesense

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

// Serve runs the admin HTTP server, and the consistency monitor when enabled,
// until ctx is done. In-flight requests get Server.ShutdownTimeout to finish.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Server.Addr)
	if err != nil {
		return err
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if a.config.Monitor.Enabled {
		monitor := a.Monitor()
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.Run(ctx, a.config.Monitor.Interval)
		}()
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	a.log.Info("starting gamesense server", "addr", ln.Addr().String())
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down server")
		timeout := a.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
		defer cancelShutdown()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
