package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/waddlebot/core/pkg/storage"
)

// mapRepoError maps a storage-layer error to an HTTP error response.
func mapRepoError(err error) *echo.HTTPError {
	if errors.Is(err, storage.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
