package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Amani-Ishimwe/RFID/internal/domain"
	apperrors "github.com/Amani-Ishimwe/RFID/internal/platform/errors"
)

const (
	missingFieldsMessage = "Missing uid or amount"
	publishFailedMessage = "Failed to publish top-up command"
	maxTopUpBodyBytes    = 16 << 10
)

func (s *Server) handleTopUp(c echo.Context) error {
	var raw domain.RawTopUp
	body := io.LimitReader(c.Request().Body, maxTopUpBodyBytes)
	if err := json.NewDecoder(body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.ValidationError(missingFieldsMessage).WithField("decode_error", err.Error())
	}

	ack, err := s.topUps.TopUp(c.Request().Context(), raw)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			return apperrors.ValidationError(missingFieldsMessage).
				WithField("field", validationErr.Field).
				WithField("reason", validationErr.Reason)
		}
		return apperrors.ExternalError(publishFailedMessage, err)
	}

	if err := c.JSON(http.StatusOK, ack); err != nil {
		return fmt.Errorf("failed to write top-up response: %w", err)
	}
	return nil
}
