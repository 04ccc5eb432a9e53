package api

import (
	"errors"
	"net/http"
	"time"

	models "CoinScope/internal/domain/models"
	domrepo "CoinScope/internal/domain/repository"
	"CoinScope/internal/service/ratelimit"
	"CoinScope/internal/usecase"
	xhttp "CoinScope/pkg/http"
	xlogger "CoinScope/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PredictionsEchoHandler implements Echo-based HTTP handlers following Clean Architecture.
type PredictionsEchoHandler struct {
	logger  *xlogger.Logger
	engine  *usecase.PredictionEngine
	tracker *usecase.AccuracyTracker
	rl      *ratelimit.Limiter
}

func NewPredictionsEchoHandler(logger *xlogger.Logger, engine *usecase.PredictionEngine, tracker *usecase.AccuracyTracker) *PredictionsEchoHandler {
	return &PredictionsEchoHandler{logger: logger, engine: engine, tracker: tracker, rl: ratelimit.New()}
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/predictions", h.Predictions)
	g.GET("/accuracy", h.Accuracy)
}

func (h *PredictionsEchoHandler) Predictions(c echo.Context) error {
	req := &models.PredictionHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":predictions", 10, 5) {
		h.logger.Warn("predictions rate_limited", xlogger.String("remote", c.RealIP()))
		return c.NoContent(http.StatusTooManyRequests)
	}

	res, err := h.engine.Predict(c.Request().Context(), usecase.PredictParams{
		Symbol:            req.Symbol,
		Horizons:          req.Horizons,
		IncludeConfidence: req.IncludeConfidence,
		IncludeFactors:    req.IncludeFactors,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrMalformedRequest) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("predictions usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *PredictionsEchoHandler) Accuracy(c echo.Context) error {
	req := &models.AccuracyHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := time.Now().UTC()
	from := now.Add(-7 * 24 * time.Hour)
	to := now
	if req.From != "" {
		t, ok := xhttp.ParseTime(req.From)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be RFC3339 or unix seconds"))
		}
		from = t
	}
	if req.To != "" {
		t, ok := xhttp.ParseTime(req.To)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("to must be RFC3339 or unix seconds"))
		}
		to = t
	}

	rows, err := h.tracker.History(c.Request().Context(), req.Symbol, domrepo.Horizon(req.Horizon), from, to, req.Limit)
	if err != nil {
		h.logger.Error("accuracy usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
