package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vocabustudy/admin-portal/cache"
	"github.com/vocabustudy/admin-portal/googleapi"
	"github.com/vocabustudy/admin-portal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatsCacheKey is the response cache key holding the serialized overview
const StatsCacheKey = "stats_cache"

// FormTypes are the Firestore form collections counted as open forms
var FormTypes = []string{"feedback", "bug", "takedown", "other"}

const (
	openFormsLimit = "25"
	setsLimit      = "500"
)

const hostingMonitoringQuery = `fetch firebase_domain
| metric 'firebasehosting.googleapis.com/network/sent_bytes_count'
| filter (resource.domain_name == '%s')
| group_by 1d,
    [value_sent_bytes_count_aggregate: aggregate(value.sent_bytes_count)]
| every 1d
| within 1d`

var overviewScopes = []string{
	googleapi.ScopeMonitoringRead,
	googleapi.ScopeDatastore,
	googleapi.ScopeIdentityToolkit,
}

// StatsConfig holds the endpoints and settings used by StatsService
type StatsConfig struct {
	ProjectID     string
	FirestoreURL  string
	MonitoringURL string
	Domain        string
	CacheTTL      time.Duration
}

// StatsService computes dashboard statistics
type StatsService struct {
	api     GoogleAPI
	cache   cache.ResponseCache
	users   *UserService
	hosting *HostingService
	cfg     StatsConfig
	logger  *zap.Logger
}

// NewStatsService creates a new StatsService
func NewStatsService(api GoogleAPI, c cache.ResponseCache, users *UserService, hosting *HostingService, cfg StatsConfig, logger *zap.Logger) *StatsService {
	cfg.FirestoreURL = strings.TrimRight(cfg.FirestoreURL, "/")
	cfg.MonitoringURL = strings.TrimRight(cfg.MonitoringURL, "/")
	return &StatsService{
		api:     api,
		cache:   c,
		users:   users,
		hosting: hosting,
		cfg:     cfg,
		logger:  logger,
	}
}

// Overview returns site-wide counters, served from the response cache when present
func (s *StatsService) Overview(ctx context.Context) (*models.Overview, error) {
	if raw, ok, err := s.cache.Get(ctx, StatsCacheKey); err != nil {
		s.logger.Warn("stats cache read failed", zap.Error(err))
	} else if ok {
		var cached models.Overview
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		s.logger.Warn("discarding unreadable stats cache entry")
		if err := s.cache.Delete(ctx, StatsCacheKey); err != nil {
			s.logger.Warn("stats cache delete failed", zap.Error(err))
		}
	}

	s.logger.Debug("fetching overall statistics")

	var overview models.Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		overview.Downloads, err = s.hostingDownloads(gctx)
		return err
	})
	g.Go(func() (err error) {
		overview.OpenForms, err = s.countOpenForms(gctx)
		return err
	})
	g.Go(func() (err error) {
		overview.Users, err = s.users.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		overview.Sets, err = s.countSets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(overview)
	if err != nil {
		return nil, WrapInternal("failed to encode stats", err)
	}
	if err := s.cache.Set(ctx, StatsCacheKey, raw, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
	return &overview, nil
}

// Hosting returns the most recent live releases
func (s *StatsService) Hosting(ctx context.Context) ([]models.Release, error) {
	return s.hosting.ListReleases(ctx)
}

// Self answers a liveness ping from the dashboard
func (s *StatsService) Self() models.PingResponse {
	return models.PingResponse{Response: "pong"}
}

func (s *StatsService) hostingDownloads(ctx context.Context) (int64, error) {
	var resp struct {
		TimeSeriesData []struct {
			PointData []struct {
				Values []struct {
					Int64Value json.Number `json:"int64Value"`
				} `json:"values"`
			} `json:"pointData"`
		} `json:"timeSeriesData"`
	}
	err := s.api.Do(ctx, googleapi.Request{
		URL:    fmt.Sprintf("%s/v3/projects/%s/timeSeries:query", s.cfg.MonitoringURL, s.cfg.ProjectID),
		Scopes: overviewScopes,
		Body:   map[string]string{"query": fmt.Sprintf(hostingMonitoringQuery, s.cfg.Domain)},
	}, &resp)
	if err != nil {
		return 0, WrapExternal("failed to fetch hosting data", err)
	}
	if len(resp.TimeSeriesData) == 0 || len(resp.TimeSeriesData[0].PointData) == 0 ||
		len(resp.TimeSeriesData[0].PointData[0].Values) == 0 {
		return 0, WrapExternal("unable to fetch hosting data", ErrUnexpectedResponse)
	}
	n, err := resp.TimeSeriesData[0].PointData[0].Values[0].Int64Value.Int64()
	if err != nil {
		return 0, WrapExternal("unable to fetch hosting data", ErrUnexpectedResponse)
	}
	return n, nil
}

func (s *StatsService) countOpenForms(ctx context.Context) (int64, error) {
	counts := make([]int64, len(FormTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, formType := range FormTypes {
		i, formType := i, formType
		g.Go(func() (err error) {
			counts[i], err = s.aggregate(gctx, "/form_data/types", formType, openFormsLimit, "openFormsCount", true)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return total, nil
}

func (s *StatsService) countSets(ctx context.Context) (int64, error) {
	return s.aggregate(ctx, "", "sets", setsLimit, "setsCount", false)
}

type aggregationResult []struct {
	Result *struct {
		AggregateFields map[string]struct {
			IntegerValue json.Number `json:"integerValue"`
		} `json:"aggregateFields"`
	} `json:"result"`
}

// aggregate runs a Firestore count query against collection under parent
func (s *StatsService) aggregate(ctx context.Context, parent, collection, upTo, alias string, openOnly bool) (int64, error) {
	query := map[string]interface{}{
		"from": []map[string]string{{"collectionId": collection}},
	}
	if openOnly {
		query["where"] = map[string]interface{}{
			"unaryFilter": map[string]interface{}{
				"field": map[string]string{"fieldPath": "response"},
				"op":    "IS_NULL",
			},
		}
	}
	body := map[string]interface{}{
		"structuredAggregationQuery": map[string]interface{}{
			"aggregations": []map[string]interface{}{{
				"count": map[string]string{"upTo": upTo},
				"alias": alias,
			}},
			"structuredQuery": query,
		},
	}

	var resp aggregationResult
	err := s.api.Do(ctx, googleapi.Request{
		URL: fmt.Sprintf("%s/v1/projects/%s/databases/(default)/documents%s:runAggregationQuery",
			s.cfg.FirestoreURL, s.cfg.ProjectID, parent),
		Scopes: overviewScopes,
		Body:   body,
	}, &resp)
	if err != nil {
		return 0, WrapExternal("failed to count "+collection, err)
	}
	if len(resp) == 0 || resp[0].Result == nil {
		return 0, WrapExternal("unable to count "+collection, ErrUnexpectedResponse)
	}
	n, err := resp[0].Result.AggregateFields[alias].IntegerValue.Int64()
	if err != nil {
		return 0, WrapExternal("unable to count "+collection, ErrUnexpectedResponse)
	}
	return n, nil
}
