package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/developerashishcanada/carpoolreact/internal/api/dto"
	"github.com/developerashishcanada/carpoolreact/internal/identity"
	"github.com/developerashishcanada/carpoolreact/internal/middleware"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
	"github.com/developerashishcanada/carpoolreact/pkg/websocket"
)

// Handlers holds all handler dependencies
type Handlers struct {
	Service *marketplace.Service
	Signer  identity.AnonymousSigner // nil when sign-in happens client side
	Hub     *websocket.Hub
	Logger  *logger.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc *marketplace.Service, signer identity.AnonymousSigner, hub *websocket.Hub, log *logger.Logger) *Handlers {
	return &Handlers{
		Service: svc,
		Signer:  signer,
		Hub:     hub,
		Logger:  log.Named("http"),
	}
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if h.Hub != nil {
		body["connections"] = h.Hub.GetActiveConnections()
		body["subscriptions"] = h.Hub.GetActiveSubscriptions()
	}
	c.JSON(http.StatusOK, body)
}

// caller resolves the authenticated user. It writes the error response and
// returns false when that fails.
func (h *Handlers) caller(c *gin.Context) (marketplace.Caller, bool) {
	caller, err := h.Service.Caller(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return marketplace.Caller{}, false
	}
	return caller, true
}

// bind decodes the JSON body into v
func (h *Handlers) bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.respondError(c, apperrors.Validation("Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

// respondError writes err as {code, message, fields}
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
		h.Logger.Error("Request failed",
			logger.String("path", c.FullPath()),
			logger.Err(err),
		)
	}
	c.JSON(appErr.Status, dto.ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Fields:  appErr.Fields,
	})
}

func list(items interface{}, count int) dto.ListResponse {
	return dto.ListResponse{Items: items, Count: count}
}
