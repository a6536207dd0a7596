package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vocabustudy/admin-portal/models"
	"go.uber.org/zap"
)

const (
	queryPath  = "/v1/projects/" + testProject + "/accounts:query"
	updatePath = "/v1/projects/" + testProject + "/accounts:update"
)

func newTestUserService(f *fakeGoogle) *UserService {
	return NewUserService(f.client(), f.server.URL+"/", testProject, zap.NewNop())
}

func TestUserService_List(t *testing.T) {
	f := newFakeGoogle(t)
	f.respond(queryPath, `{
		"recordsCount": "2",
		"userInfo": [
			{
				"localId": "u1",
				"email": "ada@example.com",
				"emailVerified": true,
				"displayName": "Ada",
				"photoUrl": "https://example.com/a.png",
				"createdAt": "1700000000000",
				"lastLoginAt": "1700000500000",
				"customAttributes": "{\"admin\":true}",
				"providerUserInfo": [
					{"providerId": "password"},
					{"providerId": "google.com", "displayName": "Ada L."}
				]
			},
			{
				"localId": "u2",
				"disabled": true,
				"createdAt": "1600000000000"
			}
		]
	}`)

	users, err := newTestUserService(f).List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, users, 2)

	body := f.lastBody(queryPath)
	assert.Equal(t, true, body["returnUserInfo"])
	assert.Equal(t, "10", body["limit"])
	assert.Equal(t, "20", body["offset"])
	assert.Equal(t, "CREATED_AT", body["sortBy"])
	assert.Equal(t, "DESC", body["order"])

	ada := users[0]
	assert.Equal(t, "u1", ada.UID)
	assert.Equal(t, "Ada", ada.DisplayName)
	assert.Equal(t, "Ada L.", ada.GoogleName)
	assert.Equal(t, []string{"password", "google.com"}, ada.Providers)
	assert.Equal(t, int64(1700000000000), ada.CreatedAt)
	assert.Equal(t, int64(1700000500000), ada.LastLoginAt)
	assert.True(t, ada.IsAdmin())
	assert.True(t, ada.EmailVerified)

	other := users[1]
	assert.True(t, other.Disabled)
	assert.Empty(t, other.GoogleName)
	assert.Equal(t, []string{}, other.Providers)
	assert.Equal(t, map[string]interface{}{}, other.CustomAttributes)
	assert.Equal(t, int64(0), other.LastLoginAt)
}

func TestUserService_ListEmpty(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"zero records", `{"recordsCount":"0"}`},
		{"no user info", `{"recordsCount":"12"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGoogle(t)
			f.respond(queryPath, tt.response)

			users, err := newTestUserService(f).List(context.Background(), 0)
			require.NoError(t, err)
			assert.NotNil(t, users)
			assert.Empty(t, users)
		})
	}
}

func TestUserService_ListErrors(t *testing.T) {
	t.Run("missing records count", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.respond(queryPath, `{}`)

		_, err := newTestUserService(f).List(context.Background(), 0)
		assert.True(t, IsExternalError(err))
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.fail(queryPath, http.StatusInternalServerError)

		_, err := newTestUserService(f).List(context.Background(), 0)
		assert.True(t, IsExternalError(err))
	})

	for _, page := range []int{-1, MaxUsersPage + 1, 922337203685477581} {
		t.Run(fmt.Sprintf("page %d out of range", page), func(t *testing.T) {
			f := newFakeGoogle(t)

			_, err := newTestUserService(f).List(context.Background(), page)
			assert.True(t, IsValidationError(err))
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 0, f.calls(queryPath))
		})
	}

	t.Run("last page", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.respond(queryPath, `{"recordsCount":"0"}`)

		_, err := newTestUserService(f).List(context.Background(), MaxUsersPage)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(MaxUsersPage*UsersPageSize), f.lastBody(queryPath)["offset"])
	})
}

func TestUserService_Count(t *testing.T) {
	f := newFakeGoogle(t)
	f.respond(queryPath, `{"recordsCount":"1234"}`)

	count, err := newTestUserService(f).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), count)
	assert.Equal(t, false, f.lastBody(queryPath)["returnUserInfo"])
}

func TestUserService_Update(t *testing.T) {
	yes, no := true, false

	t.Run("all fields", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.respond(updatePath, `{"localId":"u1"}`)

		err := newTestUserService(f).Update(context.Background(), &models.ModifyUserBody{
			UID:              "u1",
			EmailVerified:    &yes,
			Disabled:         &no,
			CustomAttributes: &models.CustomAttributes{Admin: &yes},
		})
		require.NoError(t, err)

		body := f.lastBody(updatePath)
		assert.Equal(t, "u1", body["localId"])
		assert.Equal(t, true, body["emailVerified"])
		assert.Equal(t, false, body["disableUser"])
		assert.JSONEq(t, `{"admin":true}`, body["customAttributes"].(string))
	})

	t.Run("only provided fields are sent", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.respond(updatePath, `{"localId":"u1"}`)

		err := newTestUserService(f).Update(context.Background(), &models.ModifyUserBody{UID: "u1", Disabled: &yes})
		require.NoError(t, err)

		body := f.lastBody(updatePath)
		assert.Equal(t, true, body["disableUser"])
		assert.NotContains(t, body, "emailVerified")
		assert.NotContains(t, body, "customAttributes")
	})

	t.Run("missing local id in response", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.respond(updatePath, `{}`)

		err := newTestUserService(f).Update(context.Background(), &models.ModifyUserBody{UID: "u1", Disabled: &yes})
		assert.True(t, IsExternalError(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.handle(updatePath, func(w http.ResponseWriter, _ map[string]interface{}) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"USER_NOT_FOUND"}}`))
		})

		err := newTestUserService(f).Update(context.Background(), &models.ModifyUserBody{UID: "ghost", Disabled: &yes})
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("missing uid", func(t *testing.T) {
		f := newFakeGoogle(t)

		err := newTestUserService(f).Update(context.Background(), &models.ModifyUserBody{})
		assert.True(t, IsValidationError(err))
		assert.Equal(t, 0, f.calls(updatePath))
	})

	t.Run("nothing to change", func(t *testing.T) {
		f := newFakeGoogle(t)

		err := newTestUserService(f).Update(context.Background(), &models.ModifyUserBody{UID: "u1"})
		assert.ErrorIs(t, err, ErrNoChanges)
		assert.Equal(t, 0, f.calls(updatePath))
	})
}
