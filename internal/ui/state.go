// Package ui holds the upload page state machine and its pure renderer.
//
// The page is always in exactly one View. Every user action or API outcome is
// an Event, and Reduce is the only way a State changes.
package ui

import (
	"BatteryDetect/internal/entity"
	"errors"
	"strings"
)

type View string

const (
	ViewIdle    View = "idle"
	ViewLoading View = "loading"
	ViewResults View = "results"
)

var (
	ErrInvalidFileType  = errors.New("selected file is not an image")
	ErrNoSelection      = errors.New("no file selected")
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrSelectionLocked  = errors.New("selection only allowed from the upload view")
	ErrStaleResult      = errors.New("analysis outcome arrived outside the loading view")
)

type Selection struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type AlertKind string

const (
	AlertInvalidFileType  AlertKind = "invalid_file_type"
	AlertNoSelection      AlertKind = "no_selection"
	AlertAnalysisFailed   AlertKind = "analysis_failed"
	AlertAnalysisInFlight AlertKind = "analysis_in_flight"
	AlertSelectionLocked  AlertKind = "selection_locked"
	AlertFileTooLarge     AlertKind = "file_too_large"
)

// Alert is a one-shot user notice. It is never persisted.
type Alert struct {
	Kind   AlertKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

type State struct {
	View      View                    `json:"view"`
	Selection *Selection              `json:"selection,omitempty"`
	Result    *entity.DetectionResult `json:"result,omitempty"`
	Alert     *Alert                  `json:"-"`
}

func Initial() State {
	return State{View: ViewIdle}
}

func (s State) WithAlert(kind AlertKind, detail string) State {
	s.Alert = &Alert{Kind: kind, Detail: detail}
	return s
}

func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

type Event interface {
	event()
}

type FileSelected struct {
	Name        string
	Size        int64
	ContentType string
}

type AnalyzeRequested struct{}

type AnalysisSucceeded struct {
	Result *entity.DetectionResult
}

type AnalysisFailed struct {
	Message string
}

type ResetRequested struct{}

func (FileSelected) event()      {}
func (AnalyzeRequested) event()  {}
func (AnalysisSucceeded) event() {}
func (AnalysisFailed) event()    {}
func (ResetRequested) event()    {}

// Reduce applies ev to s. A rejected event returns s unchanged apart from the
// alert, together with the reason.
func Reduce(s State, ev Event) (State, error) {
	s.Alert = nil

	switch e := ev.(type) {
	case FileSelected:
		if s.View != ViewIdle {
			return s.WithAlert(AlertSelectionLocked, ""), ErrSelectionLocked
		}
		if !IsImage(e.ContentType) {
			return s.WithAlert(AlertInvalidFileType, ""), ErrInvalidFileType
		}
		s.Selection = &Selection{Name: e.Name, Size: e.Size, ContentType: e.ContentType}
		return s, nil

	case AnalyzeRequested:
		if s.View == ViewLoading {
			return s.WithAlert(AlertAnalysisInFlight, ""), ErrAnalysisInFlight
		}
		if s.View != ViewIdle {
			return s.WithAlert(AlertSelectionLocked, ""), ErrSelectionLocked
		}
		if s.Selection == nil {
			return s.WithAlert(AlertNoSelection, ""), ErrNoSelection
		}
		s.View = ViewLoading
		s.Result = nil
		return s, nil

	case AnalysisSucceeded:
		if s.View != ViewLoading {
			return s, ErrStaleResult
		}
		s.View = ViewResults
		s.Result = e.Result
		return s, nil

	case AnalysisFailed:
		if s.View != ViewLoading {
			return s, ErrStaleResult
		}
		return Initial().WithAlert(AlertAnalysisFailed, e.Message), nil

	case ResetRequested:
		return Initial(), nil
	}

	return s, nil
}
