package battery

import "BatteryDetect/internal/entity"

type Upload struct {
	Filename    string `validate:"required,max=255"`
	ContentType string `validate:"required"`
	Data        []byte `validate:"required,min=1"`
}

type StatusResponse struct {
	entity.BackendProbe
	APIBaseURL string `json:"api_base_url"`
}
