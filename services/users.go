package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vocabustudy/admin-portal/googleapi"
	"github.com/vocabustudy/admin-portal/models"
	"go.uber.org/zap"
)

const (
	// UsersPageSize is the number of accounts returned per page
	UsersPageSize = 10
	// MaxUsersPage keeps the upstream offset within a signed 32-bit integer
	MaxUsersPage = math.MaxInt32 / UsersPageSize
)

// GoogleAPI is the subset of googleapi.Client used by the services
type GoogleAPI interface {
	Do(ctx context.Context, req googleapi.Request, out interface{}) error
}

type providerInfo struct {
	ProviderID  string `json:"providerId"`
	DisplayName string `json:"displayName"`
}

type accountInfo struct {
	LocalID          string         `json:"localId"`
	Email            string         `json:"email"`
	EmailVerified    bool           `json:"emailVerified"`
	DisplayName      string         `json:"displayName"`
	PhotoURL         string         `json:"photoUrl"`
	Disabled         bool           `json:"disabled"`
	CreatedAt        string         `json:"createdAt"`
	LastLoginAt      string         `json:"lastLoginAt"`
	CustomAttributes string         `json:"customAttributes"`
	ProviderUserInfo []providerInfo `json:"providerUserInfo"`
}

type queryAccountsResponse struct {
	RecordsCount string        `json:"recordsCount"`
	UserInfo     []accountInfo `json:"userInfo"`
}

// UserService manages Identity Platform accounts
type UserService struct {
	api       GoogleAPI
	baseURL   string
	projectID string
	logger    *zap.Logger
}

// NewUserService creates a new UserService. baseURL is the Identity Toolkit API root.
func NewUserService(api GoogleAPI, baseURL, projectID string, logger *zap.Logger) *UserService {
	return &UserService{
		api:       api,
		baseURL:   strings.TrimRight(baseURL, "/"),
		projectID: projectID,
		logger:    logger,
	}
}

func (s *UserService) endpoint(method string) string {
	return fmt.Sprintf("%s/v1/projects/%s/accounts:%s", s.baseURL, s.projectID, method)
}

// List returns one page of accounts, newest first
func (s *UserService) List(ctx context.Context, page int) ([]models.User, error) {
	if page < 0 || page > MaxUsersPage {
		return nil, NewDomainError(ErrorTypeValidation, "page out of range", ErrInvalidInput).
			WithDetail("page", page).
			WithDetail("max", MaxUsersPage)
	}

	var resp queryAccountsResponse
	err := s.api.Do(ctx, googleapi.Request{
		URL:    s.endpoint("query"),
		Scopes: []string{googleapi.ScopeIdentityToolkit},
		Body: map[string]interface{}{
			"returnUserInfo": true,
			"limit":          strconv.Itoa(UsersPageSize),
			"offset":         strconv.Itoa(page * UsersPageSize),
			"sortBy":         "CREATED_AT",
			"order":          "DESC",
		},
	}, &resp)
	if err != nil {
		return nil, WrapExternal("failed to list users", err)
	}
	if resp.RecordsCount == "" {
		return nil, WrapExternal("unable to count users", ErrUnexpectedResponse)
	}

	users := make([]models.User, 0, len(resp.UserInfo))
	if resp.RecordsCount == "0" {
		return users, nil
	}
	for _, info := range resp.UserInfo {
		user, err := toUser(info)
		if err != nil {
			s.logger.Warn("skipping account with unreadable attributes",
				zap.String("uid", info.LocalID), zap.Error(err))
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// Count returns the total number of accounts in the project
func (s *UserService) Count(ctx context.Context) (int64, error) {
	var resp queryAccountsResponse
	err := s.api.Do(ctx, googleapi.Request{
		URL:    s.endpoint("query"),
		Scopes: []string{googleapi.ScopeIdentityToolkit},
		Body:   map[string]interface{}{"returnUserInfo": false},
	}, &resp)
	if err != nil {
		return 0, WrapExternal("failed to count users", err)
	}
	count, err := strconv.ParseInt(resp.RecordsCount, 10, 64)
	if err != nil {
		return 0, WrapExternal("unable to count users", ErrUnexpectedResponse)
	}
	return count, nil
}

// Update applies body to the account identified by body.UID
func (s *UserService) Update(ctx context.Context, body *models.ModifyUserBody) error {
	if body == nil || body.UID == "" {
		return NewDomainError(ErrorTypeValidation, "uid is required", nil)
	}
	if !body.HasChanges() {
		return ErrNoChanges
	}

	req := map[string]interface{}{"localId": body.UID}
	if body.CustomAttributes != nil {
		attrs, err := json.Marshal(body.CustomAttributes)
		if err != nil {
			return WrapInternal("failed to encode custom attributes", err)
		}
		req["customAttributes"] = string(attrs)
	}
	if body.Disabled != nil {
		req["disableUser"] = *body.Disabled
	}
	if body.EmailVerified != nil {
		req["emailVerified"] = *body.EmailVerified
	}

	var resp struct {
		LocalID string `json:"localId"`
	}
	err := s.api.Do(ctx, googleapi.Request{
		URL:    s.endpoint("update"),
		Scopes: []string{googleapi.ScopeIdentityToolkit},
		Body:   req,
	}, &resp)
	if err != nil {
		var apiErr *googleapi.APIError
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Body, "USER_NOT_FOUND") {
			return ErrUserNotFound
		}
		return WrapExternal("failed to update user", err)
	}
	if resp.LocalID == "" {
		return WrapExternal("unable to update user", ErrUnexpectedResponse)
	}

	s.logger.Info("updated user", zap.String("uid", body.UID))
	return nil
}

func toUser(info accountInfo) (models.User, error) {
	attrs := map[string]interface{}{}
	if info.CustomAttributes != "" {
		if err := json.Unmarshal([]byte(info.CustomAttributes), &attrs); err != nil {
			return models.User{}, err
		}
	}

	user := models.User{
		DisplayName:      info.DisplayName,
		PhotoURL:         info.PhotoURL,
		UID:              info.LocalID,
		CustomAttributes: attrs,
		CreatedAt:        parseMillis(info.CreatedAt),
		LastLoginAt:      parseMillis(info.LastLoginAt),
		Disabled:         info.Disabled,
		EmailVerified:    info.EmailVerified,
		Email:            info.Email,
		Providers:        make([]string, 0, len(info.ProviderUserInfo)),
	}
	for _, p := range info.ProviderUserInfo {
		user.Providers = append(user.Providers, p.ProviderID)
		if p.ProviderID == "google.com" && user.GoogleName == "" {
			user.GoogleName = p.DisplayName
		}
	}
	return user, nil
}

// parseMillis parses a decimal string, returning 0 when absent or malformed
func parseMillis(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
