package ui

import (
	"BatteryDetect/internal/entity"
	"BatteryDetect/internal/locale"
	"fmt"
	"math"
	"strconv"
)

type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

func ConfidenceBand(confidence float64) Band {
	if confidence >= 70 {
		return BandHigh
	}
	if confidence >= 50 {
		return BandMedium
	}
	return BandLow
}

var sizeUnits = []string{"Bytes", "KB", "MB"}

// FormatFileSize renders bytes in base-1024 units, rounded to two decimals
// without trailing zeros. Anything beyond MB stays in MB.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	i := 0
	div := 1.0
	for i < len(sizeUnits)-1 && float64(bytes) >= div*1024 {
		div *= 1024
		i++
	}

	v := math.Round(float64(bytes)/div*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

type Stats struct {
	Total         string `json:"total"`
	AvgConfidence string `json:"avg_confidence"`
	MaxConfidence string `json:"max_confidence"`
	HighConfCount string `json:"high_conf_count"`
}

type Card struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Confidence string  `json:"confidence"`
	Band       Band    `json:"band"`
	BarWidth   float64 `json:"bar_width"`
	Location   string  `json:"location"`
	Size       string  `json:"size"`
}

// PageView is everything the page template needs. It carries no behavior.
type PageView struct {
	Lang  string         `json:"lang"`
	Text  locale.Catalog `json:"-"`
	View  View           `json:"view"`
	Alert string         `json:"alert,omitempty"`

	BackendWarning string `json:"backend_warning,omitempty"`

	UploadVisible   bool `json:"upload_visible"`
	LoadingVisible  bool `json:"loading_visible"`
	ResultsVisible  bool `json:"results_visible"`
	ResetVisible    bool `json:"reset_visible"`
	AnalyzeDisabled bool `json:"analyze_disabled"`
	FileSelected    bool `json:"file_selected"`

	UploadText string `json:"upload_text"`
	UploadHint string `json:"upload_hint"`

	SuccessMessage   string `json:"success_message,omitempty"`
	OriginalImageURL string `json:"original_image_url,omitempty"`
	ResultImageURL   string `json:"result_image_url,omitempty"`
	Stats            *Stats `json:"stats,omitempty"`
	Detections       []Card `json:"detections,omitempty"`
	NoDetections     string `json:"no_detections,omitempty"`
}

// BuildView projects s into a PageView. imageURL maps an API image filename
// to the URL the browser should load; probe may be nil before the first check.
func BuildView(s State, text locale.Catalog, imageURL func(string) string, probe *entity.BackendProbe, backendURL string) PageView {
	v := PageView{
		Lang:            text.Lang,
		Text:            text,
		View:            s.View,
		UploadVisible:   s.View == ViewIdle,
		LoadingVisible:  s.View == ViewLoading,
		ResultsVisible:  s.View == ViewResults,
		ResetVisible:    s.View == ViewResults,
		AnalyzeDisabled: s.View != ViewIdle || s.Selection == nil,
		UploadText:      text.UploadText,
		UploadHint:      text.UploadHint,
		Alert:           alertText(s.Alert, text),
	}

	if probe != nil && !probe.Reachable {
		v.BackendWarning = fmt.Sprintf(text.BackendUnreachable, backendURL)
	}

	if s.Selection != nil {
		v.FileSelected = true
		v.UploadText = fmt.Sprintf(text.SelectedText, s.Selection.Name)
		v.UploadHint = fmt.Sprintf(text.SelectedHint, FormatFileSize(s.Selection.Size))
	}

	if s.View == ViewResults && s.Result != nil {
		renderResult(&v, s.Result, text, imageURL)
	}

	return v
}

func renderResult(v *PageView, r *entity.DetectionResult, text locale.Catalog, imageURL func(string) string) {
	v.SuccessMessage = fmt.Sprintf(text.SuccessMessage, r.BatteryCount)

	if imageURL != nil {
		if r.OriginalFilename != "" {
			v.OriginalImageURL = imageURL(r.OriginalFilename)
		}
		if r.ResultFilename != "" {
			v.ResultImageURL = imageURL(r.ResultFilename)
		}
	}

	v.Stats = &Stats{
		Total:         strconv.Itoa(r.Statistics.Total),
		AvgConfidence: fixed1(r.Statistics.AvgConfidence) + "%",
		MaxConfidence: fixed1(r.Statistics.MaxConfidence) + "%",
		HighConfCount: strconv.Itoa(r.Statistics.HighConfCount),
	}

	v.Detections = RenderDetections(r.Detections, text)
	if len(v.Detections) == 0 {
		v.NoDetections = text.NoDetections
	}
}

// RenderDetections keeps the API order.
func RenderDetections(detections []entity.Detection, text locale.Catalog) []Card {
	cards := make([]Card, 0, len(detections))
	for _, d := range detections {
		b := d.BBox
		cards = append(cards, Card{
			ID:         d.ID,
			Title:      fmt.Sprintf(text.DetectionTitle, d.ID),
			Confidence: fixed1(d.Confidence) + "%",
			Band:       ConfidenceBand(d.Confidence),
			BarWidth:   math.Max(0, math.Min(100, d.Confidence)),
			Location:   fmt.Sprintf(text.DetectionLocation, plain(b.X1), plain(b.Y1), plain(b.X2), plain(b.Y2)),
			Size:       fmt.Sprintf(text.DetectionSize, plain(b.Width), plain(b.Height)),
		})
	}
	return cards
}

func alertText(a *Alert, text locale.Catalog) string {
	if a == nil {
		return ""
	}

	switch a.Kind {
	case AlertInvalidFileType:
		return text.AlertInvalidFileType
	case AlertNoSelection:
		return text.AlertNoSelection
	case AlertAnalysisInFlight:
		return text.AlertAnalysisInFlight
	case AlertSelectionLocked:
		return text.AlertSelectionLocked
	case AlertFileTooLarge:
		return text.AlertFileTooLarge
	case AlertAnalysisFailed:
		detail := a.Detail
		if detail == "" {
			detail = text.UnknownError
		}
		return fmt.Sprintf(text.AlertAnalysisFailed, detail)
	}

	return a.Detail
}

func fixed1(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
