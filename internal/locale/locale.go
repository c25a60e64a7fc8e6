package locale

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

//go:embed catalogs/*.json
var catalogFS embed.FS

const Default = "tr"

// Catalog holds every user-visible string. Fields ending in a verb are
// fmt format strings.
type Catalog struct {
	Lang                  string `json:"-"`
	Title                 string `json:"title"`
	UploadText            string `json:"upload_text"`
	UploadHint            string `json:"upload_hint"`
	SelectedText          string `json:"selected_text"`
	SelectedHint          string `json:"selected_hint"`
	AnalyzeButton         string `json:"analyze_button"`
	ResetButton           string `json:"reset_button"`
	Loading               string `json:"loading"`
	SuccessMessage        string `json:"success_message"`
	OriginalImage         string `json:"original_image"`
	ResultImage           string `json:"result_image"`
	StatTotal             string `json:"stat_total"`
	StatAvgConfidence     string `json:"stat_avg_confidence"`
	StatMaxConfidence     string `json:"stat_max_confidence"`
	StatHighConfCount     string `json:"stat_high_conf_count"`
	DetectionsTitle       string `json:"detections_title"`
	NoDetections          string `json:"no_detections"`
	DetectionTitle        string `json:"detection_title"`
	DetectionLocation     string `json:"detection_location"`
	DetectionSize         string `json:"detection_size"`
	AlertInvalidFileType  string `json:"alert_invalid_file_type"`
	AlertNoSelection      string `json:"alert_no_selection"`
	AlertAnalysisFailed   string `json:"alert_analysis_failed"`
	AlertAnalysisInFlight string `json:"alert_analysis_in_flight"`
	AlertSelectionLocked  string `json:"alert_selection_locked"`
	AlertFileTooLarge     string `json:"alert_file_too_large"`
	UnknownError          string `json:"unknown_error"`
	BackendUnreachable    string `json:"backend_unreachable"`
}

func Load(lang string) (Catalog, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = Default
	}

	raw, err := catalogFS.ReadFile("catalogs/" + lang + ".json")
	if err != nil {
		return Catalog{}, fmt.Errorf("unknown locale %q (available: %s)", lang, strings.Join(Available(), ", "))
	}

	var c Catalog
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode locale %q: %w", lang, err)
	}
	c.Lang = lang

	return c, nil
}

func Available() []string {
	entries, err := catalogFS.ReadDir("catalogs")
	if err != nil {
		return nil
	}

	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(langs)

	return langs
}
