package batteryService

import (
	"BatteryDetect/internal/api/battery"
	"BatteryDetect/internal/entity"
	"BatteryDetect/internal/ui"
	"BatteryDetect/pkg/batteryapi"
	"BatteryDetect/pkg/redis"
	"context"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type IBatteryService interface {
	Current(ctx context.Context, sessionID string) (ui.State, error)
	SelectFile(ctx context.Context, sessionID string, upload battery.Upload) (ui.State, error)
	Analyze(ctx context.Context, sessionID string) (ui.State, error)
	Reset(ctx context.Context, sessionID string) (ui.State, error)
	CheckStatus(ctx context.Context) entity.BackendProbe
	LastProbe() *entity.BackendProbe
	FetchImage(ctx context.Context, filename string) ([]byte, string, error)
	ImageURL(filename string) string
	APIBaseURL() string
}

type Options struct {
	AnalyzeTimeout time.Duration
	StatusTimeout  time.Duration
	ImageProxy     bool
}

type batteryService struct {
	log   *logrus.Logger
	store redis.ISessionStore
	api   batteryapi.IBatteryAPI
	opts  Options
	probe atomic.Pointer[entity.BackendProbe]
}

func NewBatteryService(
	log *logrus.Logger,
	store redis.ISessionStore,
	api batteryapi.IBatteryAPI,
	opts Options,
) IBatteryService {
	if opts.AnalyzeTimeout <= 0 {
		opts.AnalyzeTimeout = 60 * time.Second
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = 5 * time.Second
	}
	return &batteryService{
		log:   log,
		store: store,
		api:   api,
		opts:  opts,
	}
}
