package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/krshsl/destiny/backend/models"
	"github.com/krshsl/destiny/backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthStore struct {
	users     map[string]*models.User
	profiles  map[string]any
	refresh   map[string]*models.RefreshToken
	permanent map[string]*models.PermanentToken
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		users:     map[string]*models.User{},
		profiles:  map[string]any{},
		refresh:   map[string]*models.RefreshToken{},
		permanent: map[string]*models.PermanentToken{},
	}
}

func (f *fakeAuthStore) CreateUserWithProfile(ctx context.Context, user *models.User) error {
	user.ID = fmt.Sprintf("user-%d", len(f.users)+1)
	profile, err := repository.EmptyProfile(user)
	if err != nil {
		return err
	}
	f.users[user.ID] = user
	f.profiles[user.ID] = profile
	return nil
}

func (f *fakeAuthStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeAuthStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeAuthStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	f.refresh[token.Token] = token
	return nil
}

func (f *fakeAuthStore) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return f.refresh[token], nil
}

func (f *fakeAuthStore) CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error {
	token.CreatedAt = time.Now()
	f.permanent[token.Token] = token
	return nil
}

func (f *fakeAuthStore) GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error) {
	return f.permanent[token], nil
}

func (f *fakeAuthStore) DeleteAllUserTokens(ctx context.Context, userID string) error {
	for k, t := range f.refresh {
		if t.UserID == userID {
			delete(f.refresh, k)
		}
	}
	for k, t := range f.permanent {
		if t.UserID == userID {
			delete(f.permanent, k)
		}
	}
	return nil
}

func TestSignupCreatesEmptyStudentProfile(t *testing.T) {
	store := newFakeAuthStore()
	svc := NewAuthService(store, "test-secret", false)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, "asha@example.com", "hunter22", "Asha", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.User.Role, "role defaults to student")
	assert.NotEqual(t, "hunter22", resp.User.Password)
	assert.NotEmpty(t, resp.AccessToken)

	profile, ok := store.profiles[resp.User.ID].(*models.StudentProfile)
	require.True(t, ok)
	assert.Equal(t, resp.User.ID, profile.UserID)
	assert.Equal(t, "Asha", profile.FullName)
	assert.Equal(t, models.ReadinessNotReady, profile.JobReadinessLevel)
	assert.Zero(t, profile.JobReadinessScore)
	assert.Empty(t, profile.Skills)

	// only hashes are persisted
	assert.Len(t, store.refresh, 1)
	assert.NotContains(t, store.refresh, resp.RefreshToken)
	assert.Contains(t, store.refresh, svc.hashToken(resp.RefreshToken))

	_, err = svc.Signup(ctx, "asha@example.com", "other", "Asha", models.RoleStudent)
	assert.ErrorIs(t, err, ErrConflict)

	recruiter, err := svc.Signup(ctx, "ravi@example.com", "hunter22", "Ravi", models.RoleRecruiter)
	require.NoError(t, err)
	assert.IsType(t, &models.RecruiterProfile{}, store.profiles[recruiter.User.ID])
}

func TestLoginAndTokens(t *testing.T) {
	store := newFakeAuthStore()
	svc := NewAuthService(store, "test-secret", false)
	ctx := context.Background()

	signup, err := svc.Signup(ctx, "asha@example.com", "hunter22", "Asha", models.RoleStudent)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "asha@example.com", "wrong")
	assert.Error(t, err)
	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.Error(t, err)

	login, err := svc.Login(ctx, "asha@example.com", "hunter22")
	require.NoError(t, err)

	user, err := svc.VerifyAccessToken(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, user.ID)

	_, err = NewAuthService(store, "other-secret", false).VerifyAccessToken(ctx, login.AccessToken)
	assert.Error(t, err)

	refreshed, err := svc.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken)

	_, err = svc.VerifyPermanentToken(ctx, login.PermanentToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))
	_, err = svc.RefreshToken(ctx, login.RefreshToken)
	assert.Error(t, err)
	_, err = svc.VerifyPermanentToken(ctx, login.PermanentToken)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	store := newFakeAuthStore()
	svc := NewAuthService(store, "test-secret", false)
	resp, err := svc.Signup(context.Background(), "asha@example.com", "hunter22", "Asha", models.RoleStudent)
	require.NoError(t, err)

	var seen *models.User
	h := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value("user").(*models.User)
	}))

	tests := []struct {
		name       string
		cookie     *http.Cookie
		wantStatus int
		wantCookie bool
	}{
		{"no cookie", nil, http.StatusUnauthorized, false},
		{"access token", &http.Cookie{Name: "access_token", Value: resp.AccessToken}, http.StatusOK, false},
		{"refresh token", &http.Cookie{Name: "refresh_token", Value: resp.RefreshToken}, http.StatusOK, true},
		{"permanent token", &http.Cookie{Name: "permanent_token", Value: resp.PermanentToken}, http.StatusOK, true},
		{"garbage", &http.Cookie{Name: "access_token", Value: "nope"}, http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, resp.User.ID, seen.ID)
			}
			assert.Equal(t, tt.wantCookie, len(rec.Result().Cookies()) > 0)
		})
	}
}
