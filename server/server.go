// Package server exposes the pipeline over HTTP and streams its events over a websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/airchains-network/txpipe/contract"
	"github.com/airchains-network/txpipe/journal"
	"github.com/airchains-network/txpipe/pipeline"
	"github.com/airchains-network/txpipe/types"
	"github.com/airchains-network/txpipe/units"
)

// Deps are the collaborators of a Server. Signer, Journal, Gatherer and Artifacts are
// optional; the endpoints needing a missing one answer 503.
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Signer    pipeline.Signer
	Journal   *journal.Journal
	Hub       *Hub
	Gatherer  prometheus.Gatherer
	Artifacts []*types.ContractArtifact
	Log       *logrus.Logger
}

type Server struct {
	deps    Deps
	invoker *contract.Invoker
	router  *gin.Engine
	log     *logrus.Logger
}

func New(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Log)
	}
	s := &Server{
		deps:    deps,
		invoker: contract.NewInvoker(deps.Pipeline),
		log:     deps.Log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[API] %s - %s %s %d\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.StatusCode,
			)
		},
		Output: s.log.Writer(),
	}))
	router.Use(gin.Recovery())

	router.GET("/balance/:address", s.handleBalance)
	router.GET("/nonce/:address", s.handleNonce)
	router.POST("/transfer", s.handleTransfer)
	router.GET("/tx/:hash", s.handleTx)
	router.GET("/history/:address", s.handleHistory)
	router.GET("/contracts", s.handleContracts)
	router.POST("/call", s.handleCall)
	router.POST("/invoke", s.handleInvoke)
	router.GET("/ws", s.deps.Hub.serveWS)
	if s.deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// Handler is the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler { return s.router }

// Hub is the websocket hub the server streams to
func (s *Server) Hub() *Hub { return s.deps.Hub }

// Start serves on listen until ctx is done
func (s *Server) Start(ctx context.Context, listen string) error {
	go s.deps.Hub.Run(ctx)

	srv := &http.Server{Addr: listen, Handler: s.router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("API server shutdown: %v", err)
		}
	}()

	s.log.Infof("Starting API server on %s", listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve on %s: %w", listen, err)
	}
	return nil
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, journal.ErrRecordNotFound), errors.Is(err, types.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrRejected):
		return http.StatusConflict
	case errors.Is(err, types.ErrReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

var errUnavailable = errors.New("not configured on this server")

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", types.ErrInvalidTransactionParameters, raw)
	}
	return common.HexToAddress(raw), nil
}

func receiptView(r *types.Receipt) gin.H {
	if r == nil {
		return nil
	}
	view := gin.H{
		"transactionHash": r.TxHash.Hex(),
		"status":          r.Status.String(),
		"gasUsed":         r.GasUsed,
		"blockNumber":     r.BlockNumber,
	}
	if fee := r.Fee(); fee != nil {
		view["fee"] = fee.String()
		view["feeEther"] = units.ToDecimal(fee)
	}
	return view
}
