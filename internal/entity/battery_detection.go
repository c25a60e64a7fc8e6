package entity

type BoundingBox struct {
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Detection struct {
	ID         int         `json:"id"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

type DetectionStatistics struct {
	Total         int     `json:"total"`
	AvgConfidence float64 `json:"avg_confidence"`
	MaxConfidence float64 `json:"max_confidence"`
	HighConfCount int     `json:"high_conf_count"`
}

// DetectionResult is the payload returned by POST {base}/analyze.
type DetectionResult struct {
	Success          bool                `json:"success"`
	Error            string              `json:"error,omitempty"`
	BatteryCount     int                 `json:"battery_count"`
	OriginalFilename string              `json:"original_filename"`
	ResultFilename   string              `json:"result_filename"`
	Statistics       DetectionStatistics `json:"statistics"`
	Detections       []Detection         `json:"detections"`
}

const ServerStatusOnline = "online"

type ServerStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// BackendProbe is the outcome of the last status check against the detection API.
type BackendProbe struct {
	Reachable   bool   `json:"reachable"`
	Online      bool   `json:"online"`
	ModelLoaded bool   `json:"model_loaded"`
	Error       string `json:"error,omitempty"`
}
