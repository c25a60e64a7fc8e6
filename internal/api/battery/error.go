package battery

import (
	"BatteryDetect/pkg/response"
	"net/http"
)

var (
	ErrMissingFile         = response.NewError(http.StatusBadRequest, "no image uploaded")
	ErrInvalidFileType     = response.NewError(http.StatusUnsupportedMediaType, "selected file is not an image")
	ErrFileTooLarge        = response.NewError(http.StatusRequestEntityTooLarge, "file too large")
	ErrNoSelection         = response.NewError(http.StatusBadRequest, "no image selected")
	ErrAnalysisInFlight    = response.NewError(http.StatusConflict, "analysis already in progress")
	ErrSelectionLocked     = response.NewError(http.StatusConflict, "reset before selecting a new image")
	ErrAnalysisFailed      = response.NewError(http.StatusBadGateway, "analysis failed")
	ErrImageProxyDisabled  = response.NewError(http.StatusNotFound, "image proxy disabled")
	ErrInvalidImageName    = response.NewError(http.StatusBadRequest, "invalid image name")
	ErrImageUnavailable    = response.NewError(http.StatusBadGateway, "image unavailable")
	ErrSessionMissing      = response.NewError(http.StatusUnauthorized, "session missing")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
