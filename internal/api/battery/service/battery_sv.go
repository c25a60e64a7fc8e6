package batteryService

import (
	"BatteryDetect/internal/api/battery"
	"BatteryDetect/internal/entity"
	"BatteryDetect/internal/ui"
	"BatteryDetect/pkg/batteryapi"
	contextPkg "BatteryDetect/pkg/context"
	"BatteryDetect/pkg/log"
	"BatteryDetect/pkg/redis"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// lockGrace keeps the in-flight lock alive a little past the request timeout
// so a slow response cannot overlap with a new submit.
const lockGrace = 5 * time.Second

const interruptedMessage = "analysis interrupted"

func (s *batteryService) Current(ctx context.Context, sessionID string) (ui.State, error) {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		return ui.State{}, err
	}

	if st.View != ui.ViewLoading {
		return st, nil
	}

	// Loading with nobody holding the lock means the request that owned it died.
	ok, err := s.store.AcquireLock(ctx, sessionID, lockGrace)
	if err != nil || !ok {
		return st, nil
	}
	defer s.releaseLock(sessionID)

	next, err := ui.Reduce(st, ui.AnalysisFailed{Message: interruptedMessage})
	if err != nil {
		return st, nil
	}
	_ = s.store.DeleteUpload(ctx, sessionID)
	if err := s.save(ctx, sessionID, next); err != nil {
		return st, err
	}

	s.logger(ctx).WithField("session_id", sessionID).Warn("Recovered session stuck in loading view")
	return next, nil
}

func (s *batteryService) SelectFile(ctx context.Context, sessionID string, upload battery.Upload) (ui.State, error) {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		return ui.State{}, err
	}

	next, err := ui.Reduce(st, ui.FileSelected{
		Name:        filepath.Base(filepath.Clean("/" + upload.Filename)),
		Size:        int64(len(upload.Data)),
		ContentType: upload.ContentType,
	})
	if err != nil {
		s.logger(ctx).WithFields(log.Fields{
			"session_id":   sessionID,
			"file_name":    upload.Filename,
			"content_type": upload.ContentType,
			"error":        err.Error(),
		}).Warn("File selection rejected")
		return next, translate(err)
	}

	if err := s.store.SetUpload(ctx, sessionID, upload.Data); err != nil {
		return st, fmt.Errorf("store upload: %w", err)
	}
	if err := s.save(ctx, sessionID, next); err != nil {
		return st, err
	}

	s.logger(ctx).WithFields(log.Fields{
		"session_id": sessionID,
		"file_name":  next.Selection.Name,
		"file_size":  next.Selection.Size,
	}).Info("File selected")

	return next, nil
}

// Analyze runs one analysis for the session's selection. Failures come back
// as the reset state together with an error wrapping battery.ErrAnalysisFailed.
func (s *batteryService) Analyze(ctx context.Context, sessionID string) (ui.State, error) {
	st, err := s.load(ctx, sessionID)
	if err != nil {
		return ui.State{}, err
	}

	loading, err := ui.Reduce(st, ui.AnalyzeRequested{})
	if err != nil {
		return loading, translate(err)
	}

	ok, err := s.store.AcquireLock(ctx, sessionID, s.opts.AnalyzeTimeout+lockGrace)
	if err != nil {
		return st, fmt.Errorf("acquire analysis lock: %w", err)
	}
	if !ok {
		return st.WithAlert(ui.AlertAnalysisInFlight, ""), battery.ErrAnalysisInFlight
	}
	defer s.releaseLock(sessionID)

	// Another analysis may have finished between the first read and the lock.
	if st, err = s.load(ctx, sessionID); err != nil {
		return ui.State{}, err
	}
	if loading, err = ui.Reduce(st, ui.AnalyzeRequested{}); err != nil {
		return loading, translate(err)
	}

	if err := s.save(ctx, sessionID, loading); err != nil {
		return st, err
	}

	logger := s.logger(ctx).WithField("session_id", sessionID)
	logger.WithField("file_name", loading.Selection.Name).Info("Starting analysis")

	outcome, cause := s.runAnalysis(ctx, sessionID, loading.Selection)

	// Re-read: a reset may have landed while the request was in flight.
	current, err := s.load(ctx, sessionID)
	if err != nil {
		return ui.State{}, err
	}

	final, err := ui.Reduce(current, outcome)
	if errors.Is(err, ui.ErrStaleResult) {
		logger.Info("Discarding analysis outcome after reset")
		return current, nil
	}

	if cause != nil {
		_ = s.store.DeleteUpload(ctx, sessionID)
	}
	if err := s.save(ctx, sessionID, final); err != nil {
		return final, err
	}

	if cause != nil {
		logger.WithField("error", cause.Error()).Warn("Analysis failed")
		return final, fmt.Errorf("%w: %v", battery.ErrAnalysisFailed, cause)
	}

	logger.WithFields(log.Fields{
		"battery_count": final.Result.BatteryCount,
		"detections":    len(final.Result.Detections),
	}).Info("Analysis successful")

	return final, nil
}

func (s *batteryService) runAnalysis(ctx context.Context, sessionID string, sel *ui.Selection) (ui.Event, error) {
	image, err := s.store.GetUpload(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			err = errors.New("uploaded image expired, please select it again")
		}
		return ui.AnalysisFailed{Message: err.Error()}, err
	}

	actx, cancel := context.WithTimeout(ctx, s.opts.AnalyzeTimeout)
	defer cancel()

	result, err := s.api.Analyze(actx, sel.Name, sel.ContentType, image)
	if err != nil {
		var remote *batteryapi.RemoteError
		if errors.As(err, &remote) {
			return ui.AnalysisFailed{Message: remote.Message}, err
		}
		return ui.AnalysisFailed{Message: err.Error()}, err
	}

	return ui.AnalysisSucceeded{Result: result}, nil
}

func (s *batteryService) Reset(ctx context.Context, sessionID string) (ui.State, error) {
	next, _ := ui.Reduce(ui.Initial(), ui.ResetRequested{})

	if err := s.store.DeleteUpload(ctx, sessionID); err != nil {
		return next, fmt.Errorf("delete upload: %w", err)
	}
	if err := s.store.DeleteState(ctx, sessionID); err != nil {
		return next, fmt.Errorf("delete state: %w", err)
	}

	s.logger(ctx).WithField("session_id", sessionID).Info("Interface reset")
	return next, nil
}

// CheckStatus probes the API. The outcome is kept for the page banner and
// never stops the rest of the UI from working.
func (s *batteryService) CheckStatus(ctx context.Context) entity.BackendProbe {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StatusTimeout)
	defer cancel()

	var probe entity.BackendProbe
	status, err := s.api.Status(ctx)
	switch {
	case err != nil:
		probe.Error = err.Error()
		s.log.WithFields(log.Fields{
			"api_base_url": s.api.BaseURL(),
			"error":        err.Error(),
		}).Warn("Cannot reach detection api")
	case status.Status == entity.ServerStatusOnline:
		probe.Reachable = true
		probe.Online = true
		probe.ModelLoaded = status.ModelLoaded
		s.log.WithFields(log.Fields{
			"api_base_url": s.api.BaseURL(),
			"model_loaded": status.ModelLoaded,
		}).Info("Detection api online")
	default:
		probe.Reachable = true
		probe.ModelLoaded = status.ModelLoaded
		s.log.WithFields(log.Fields{
			"api_base_url": s.api.BaseURL(),
			"status":       status.Status,
		}).Warn("Detection api reported non-online status")
	}

	s.probe.Store(&probe)
	return probe
}

func (s *batteryService) LastProbe() *entity.BackendProbe {
	return s.probe.Load()
}

func (s *batteryService) FetchImage(ctx context.Context, filename string) ([]byte, string, error) {
	if !s.opts.ImageProxy {
		return nil, "", battery.ErrImageProxyDisabled
	}
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return nil, "", battery.ErrInvalidImageName
	}

	data, contentType, err := s.api.Image(ctx, filename)
	if err != nil {
		s.logger(ctx).WithFields(log.Fields{
			"file_name": filename,
			"error":     err.Error(),
		}).Warn("Fetching image from detection api failed")
		return nil, "", fmt.Errorf("%w: %v", battery.ErrImageUnavailable, err)
	}

	return data, contentType, nil
}

func (s *batteryService) ImageURL(filename string) string {
	if s.opts.ImageProxy {
		return "/images/" + url.PathEscape(filename)
	}
	return s.api.ImageURL(filename)
}

func (s *batteryService) APIBaseURL() string {
	return s.api.BaseURL()
}

func (s *batteryService) load(ctx context.Context, sessionID string) (ui.State, error) {
	if sessionID == "" {
		return ui.State{}, battery.ErrSessionMissing
	}

	raw, err := s.store.GetState(ctx, sessionID)
	if errors.Is(err, redis.ErrNotFound) {
		return ui.Initial(), nil
	}
	if err != nil {
		return ui.State{}, fmt.Errorf("load session state: %w", err)
	}

	var st ui.State
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger(ctx).WithFields(log.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("Discarding unreadable session state")
		return ui.Initial(), nil
	}

	return st, nil
}

func (s *batteryService) save(ctx context.Context, sessionID string, st ui.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := s.store.SetState(ctx, sessionID, raw); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *batteryService) releaseLock(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.ReleaseLock(ctx, sessionID); err != nil {
		s.log.WithField("session_id", sessionID).Errorf("Failed to release analysis lock: %v", err)
	}
}

func (s *batteryService) logger(ctx context.Context) *logrus.Entry {
	return s.log.WithField("request_id", contextPkg.GetRequestID(ctx))
}

func translate(err error) error {
	switch {
	case errors.Is(err, ui.ErrInvalidFileType):
		return battery.ErrInvalidFileType
	case errors.Is(err, ui.ErrNoSelection):
		return battery.ErrNoSelection
	case errors.Is(err, ui.ErrAnalysisInFlight):
		return battery.ErrAnalysisInFlight
	case errors.Is(err, ui.ErrSelectionLocked):
		return battery.ErrSelectionLocked
	}
	return err
}
