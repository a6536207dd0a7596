package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vocabustudy/admin-portal/googleapi"
	"github.com/vocabustudy/admin-portal/models"
	"go.uber.org/zap"
)

// ReleasesPageSize is the number of live-channel releases returned
const ReleasesPageSize = 5

const deploymentToolLabel = "deployment-tool"

var deploymentMethods = map[string]models.DeploymentMethod{
	"cli-firebase--action-hosting-deploy": models.DeployedWithGitHubAction,
	"cli-firebase":                        models.DeployedWithCLI,
}

// RawRelease is a release resource as returned by the Firebase Hosting API
type RawRelease struct {
	Name        string             `json:"name"`
	Type        models.ReleaseType `json:"type"`
	ReleaseTime string             `json:"releaseTime"`
	ReleaseUser models.ReleaseUser `json:"releaseUser"`
	Version     struct {
		Name         string            `json:"name"`
		Status       string            `json:"status"`
		Labels       map[string]string `json:"labels"`
		FileCount    json.Number       `json:"fileCount"`
		VersionBytes json.Number       `json:"versionBytes"`
	} `json:"version"`
}

// ParseRelease summarizes a raw release for the dashboard
func ParseRelease(raw RawRelease) models.Release {
	deployedWith, ok := deploymentMethods[raw.Version.Labels[deploymentToolLabel]]
	if !ok {
		deployedWith = models.DeployedWithUnknown
	}

	var timestamp int64
	if t, err := time.Parse(time.RFC3339, raw.ReleaseTime); err == nil {
		timestamp = t.UnixMilli()
	}
	fileCount, _ := raw.Version.FileCount.Int64()
	sizeBytes, _ := raw.Version.VersionBytes.Int64()

	return models.Release{
		ID:           lastSegment(raw.Name),
		Hash:         lastSegment(raw.Version.Name),
		DeployedWith: deployedWith,
		Timestamp:    timestamp,
		Type:         raw.Type,
		User:         raw.ReleaseUser,
		FileCount:    fileCount,
		SizeBytes:    sizeBytes,
		HasExpired:   raw.Version.Status == "EXPIRED",
	}
}

func lastSegment(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

// HostingService reads and rolls back Firebase Hosting releases
type HostingService struct {
	api     GoogleAPI
	baseURL string
	siteID  string
	logger  *zap.Logger
}

// NewHostingService creates a new HostingService. baseURL is the Firebase Hosting API root.
func NewHostingService(api GoogleAPI, baseURL, siteID string, logger *zap.Logger) *HostingService {
	return &HostingService{
		api:     api,
		baseURL: strings.TrimRight(baseURL, "/"),
		siteID:  siteID,
		logger:  logger,
	}
}

func (s *HostingService) releasesURL(query url.Values) string {
	u := fmt.Sprintf("%s/v1beta1/sites/%s/channels/live/releases", s.baseURL, s.siteID)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// ListReleases returns the most recent releases on the live channel
func (s *HostingService) ListReleases(ctx context.Context) ([]models.Release, error) {
	var resp struct {
		Releases []RawRelease `json:"releases"`
	}
	err := s.api.Do(ctx, googleapi.Request{
		Method: http.MethodGet,
		URL:    s.releasesURL(url.Values{"pageSize": {fmt.Sprint(ReleasesPageSize)}}),
		Scopes: []string{googleapi.ScopeHostingReadOnly},
	}, &resp)
	if err != nil {
		return nil, WrapExternal("failed to fetch release info", err)
	}
	if resp.Releases == nil {
		return nil, WrapExternal("unable to fetch detailed release info", ErrUnexpectedResponse)
	}

	releases := make([]models.Release, 0, len(resp.Releases))
	for _, raw := range resp.Releases {
		releases = append(releases, ParseRelease(raw))
	}
	return releases, nil
}

// Rollback creates a new live release pointing at an existing version
func (s *HostingService) Rollback(ctx context.Context, versionHash string) error {
	if versionHash == "" || strings.Contains(versionHash, "/") {
		return NewDomainError(ErrorTypeValidation, "invalid version hash", nil).
			WithDetail("versionHash", versionHash)
	}

	versionName := fmt.Sprintf("sites/%s/versions/%s", s.siteID, versionHash)
	err := s.api.Do(ctx, googleapi.Request{
		URL:    s.releasesURL(url.Values{"versionName": {versionName}}),
		Scopes: []string{googleapi.ScopeHosting},
		Body:   struct{}{},
	}, nil)
	if err != nil {
		if googleapi.IsStatus(err, http.StatusNotFound) {
			return ErrVersionNotFound
		}
		return WrapExternal("failed to roll back release", err)
	}

	s.logger.Info("rolled back hosting release",
		zap.String("site", s.siteID),
		zap.String("version", versionHash))
	return nil
}
