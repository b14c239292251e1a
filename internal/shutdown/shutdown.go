package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown blocks until a termination signal arrives, runs the
// handler, then waits gracePeriod for in-flight pages to drain and
// writers to flush before closing done.
func ListenForShutdown(
	signalChan chan os.Signal,
	done chan bool,
	signalHandler func(),
	gracePeriod time.Duration,
	l *zap.Logger,
) {
	sig := <-signalChan
	switch sig {
	case syscall.SIGTERM, syscall.SIGINT:
		l.Sugar().Infow("Caught termination signal", zap.String("signal", sig.String()))

		signalHandler()

		l.Sugar().Infow("Draining before exit", zap.Duration("gracePeriod", gracePeriod))
		time.Sleep(gracePeriod)

		l.Sugar().Info("Exiting")
		close(done)
	}
}
