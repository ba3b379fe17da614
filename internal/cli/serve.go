package cli

import (
	"context"
	"errors"
	"ideafeed/internal/mq"
	"ideafeed/internal/router"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and background workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	a.startTracing()

	// 异步排名队列
	a.ranking.Start()
	defer a.ranking.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.rabbit != nil {
		consumer := mq.NewConsumer(a.rabbit, a.classifier, a.publication, a.engagement)
		consumer.Start(ctx)
	} else {
		zap.L().Info("RabbitMQ not configured, consumers disabled")
	}

	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router.New(a.cfg.AppName, a.cfg.JWTSecret, a.routerServices()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 优雅退出
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("Server starting", zap.String("addr", httpServer.Addr), zap.String("version", Version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return err
	}
	zap.L().Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
