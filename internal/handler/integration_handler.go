package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/peakform/biometrics-service/internal/domain"
	"github.com/peakform/biometrics-service/internal/dto"
	"github.com/peakform/biometrics-service/internal/provider"
	"github.com/peakform/biometrics-service/internal/service"
	"go.uber.org/zap"
)

// IntegrationHandler handles per-provider authorization and data requests
type IntegrationHandler struct {
	integrations service.IntegrationService
	appBaseURL   string
	logger       *zap.Logger
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(integrations service.IntegrationService, appBaseURL string, logger *zap.Logger) *IntegrationHandler {
	return &IntegrationHandler{
		integrations: integrations,
		appBaseURL:   appBaseURL,
		logger:       logger,
	}
}

// Authorize returns the handler for GET /integrations/<provider>/auth.
// The OAuth2 providers take the user id from the verified session; Garmin
// accepts a caller-supplied userId query parameter. The asymmetry is
// inherited behavior, kept deliberately.
func (h *IntegrationHandler) Authorize(providerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID string
		if providerName == domain.ProviderGarmin {
			userID = c.Query("userId")
			if userID == "" {
				c.JSON(http.StatusBadRequest, dto.ErrorResponse{
					Error:   "Bad request",
					Message: "userId query parameter is required",
				})
				return
			}
		} else {
			userID = c.GetString("user_id")
		}

		url, err := h.integrations.AuthorizeURL(c.Request.Context(), providerName, userID)
		if err != nil {
			h.writeError(c, providerName, err)
			return
		}

		c.JSON(http.StatusOK, dto.AuthURLResponse{URL: url})
	}
}

// Callback returns the handler for GET /integrations/<provider>/callback.
// Callbacks never answer with JSON: success and every failure redirect to
// the application root tagged with the provider and, on failure, a reason.
func (h *IntegrationHandler) Callback(providerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := service.CallbackParams{
			Code:          c.Query("code"),
			State:         c.Query("state"),
			OAuthToken:    c.Query("oauth_token"),
			OAuthVerifier: c.Query("oauth_verifier"),
		}

		if err := h.integrations.HandleCallback(c.Request.Context(), providerName, params); err != nil {
			reason := service.ReasonUnknown
			var cbErr *service.CallbackError
			if errors.As(err, &cbErr) {
				reason = cbErr.Reason
			}

			h.logger.Warn("integration callback failed",
				zap.String("provider", providerName),
				zap.String("reason", reason),
				zap.Error(err),
			)

			c.Redirect(http.StatusFound, fmt.Sprintf("%s/?%s=error&reason=%s", h.appBaseURL, providerName, reason))
			return
		}

		c.Redirect(http.StatusFound, fmt.Sprintf("%s/?%s=connected", h.appBaseURL, providerName))
	}
}

// Data returns the handler for GET /integrations/<provider>/data
func (h *IntegrationHandler) Data(providerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		response, err := h.integrations.FetchData(c.Request.Context(), providerName, c.GetString("user_id"))
		if err != nil {
			h.writeError(c, providerName, err)
			return
		}

		c.JSON(http.StatusOK, response)
	}
}

// Disconnect returns the handler for POST /integrations/<provider>/disconnect
func (h *IntegrationHandler) Disconnect(providerName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.integrations.Disconnect(c.Request.Context(), providerName, c.GetString("user_id")); err != nil {
			h.writeError(c, providerName, err)
			return
		}

		c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
	}
}

// writeError maps service errors onto the status taxonomy: validation 400,
// missing configuration 500, provider failure 502, anything else 500.
func (h *IntegrationHandler) writeError(c *gin.Context, providerName string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: err.Error(),
		})
	case errors.Is(err, provider.ErrNotConfigured):
		h.logger.Error("integration not configured", zap.String("provider", providerName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Configuration error",
			Message: fmt.Sprintf("%s integration is not configured", providerName),
		})
	case errors.Is(err, provider.ErrUpstream):
		h.logger.Error("provider request failed", zap.String("provider", providerName), zap.Error(err))
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Error:   "Upstream error",
			Message: fmt.Sprintf("%s did not accept the request", providerName),
		})
	default:
		h.logger.Error("integration request failed", zap.String("provider", providerName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: err.Error(),
		})
	}
}
