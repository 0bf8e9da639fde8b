package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prosperspot/roster-sync/internal/authadmin"
	"github.com/prosperspot/roster-sync/internal/config"
	"github.com/prosperspot/roster-sync/internal/models"
	"github.com/prosperspot/roster-sync/internal/tiermap"
)

// MockBillingStore реализует интерфейс BillingStore
type MockBillingStore struct {
	mock.Mock
}

func (m *MockBillingStore) UpsertUser(ctx context.Context, record models.BillingRecord) (*models.BillingRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BillingRecord), args.Error(1)
}

func (m *MockBillingStore) SetAuthUID(ctx context.Context, email, authUID string) error {
	args := m.Called(ctx, email, authUID)
	return args.Error(0)
}

// MockAuthAdmin реализует интерфейс AuthAdmin
type MockAuthAdmin struct {
	mock.Mock
}

func (m *MockAuthAdmin) CreateUser(ctx context.Context, email string) (*authadmin.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authadmin.User), args.Error(1)
}

func (m *MockAuthAdmin) Invite(ctx context.Context, email, redirectTo string) error {
	args := m.Called(ctx, email, redirectTo)
	return args.Error(0)
}

// MockChatSync реализует интерфейс ChatSync
type MockChatSync struct {
	mock.Mock
}

func (m *MockChatSync) SyncUsers(ctx context.Context, users []models.SyncUser) (*models.SyncResult, error) {
	args := m.Called(ctx, users)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncResult), args.Error(1)
}

func testConfig() *config.Config {
	cfg := &config.Config{
		BillingStore: config.BillingStore{
			URL:        "https://example.supabase.co",
			ServiceKey: "service-key",
		},
		ChatSync: config.ChatSync{
			Endpoint: "https://chat.example.com/api/v1/users/sync",
			APIKey:   "owui-token",
		},
		TierVariants: config.TierVariants{
			Standard: "222",
			Pro:      "333",
		},
	}
	cfg.Sync.InviteRedirectURL = "https://chat.example.com"
	return cfg
}

func testGroups() tiermap.Mapping {
	return tiermap.New("Student", "Standard", "Pro")
}

func newEvent(eventName, email, userName, variantID, subID string) *models.WebhookEvent {
	event := &models.WebhookEvent{}
	event.Meta.EventName = eventName
	event.Data.ID = subID
	event.Data.Attributes = models.WebhookAttributes{
		UserEmail: email,
		UserName:  userName,
		VariantID: json.Number(variantID),
		Status:    "active",
	}
	return event
}

func newService(cfg *config.Config, billing *MockBillingStore, auth *MockAuthAdmin, chat *MockChatSync) *WebhookService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewWebhookService(cfg, testGroups(), billing, auth, chat, logger)
}

func TestProcessEvent_IgnoresUnknownEvent(t *testing.T) {
	billingMock := new(MockBillingStore)
	authMock := new(MockAuthAdmin)
	chatMock := new(MockChatSync)

	service := newService(testConfig(), billingMock, authMock, chatMock)
	outcome, err := service.ProcessEvent(context.Background(), newEvent("order_created", "b@y.com", "", "222", "sub-1"))

	require.NoError(t, err)
	assert.True(t, outcome.Ignored)
	// Никаких побочных эффектов для нераспознанного события
	billingMock.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
	chatMock.AssertNotCalled(t, "SyncUsers", mock.Anything, mock.Anything)
}

func TestProcessEvent_MissingEmail(t *testing.T) {
	billingMock := new(MockBillingStore)
	chatMock := new(MockChatSync)

	service := newService(testConfig(), billingMock, new(MockAuthAdmin), chatMock)
	outcome, err := service.ProcessEvent(context.Background(), newEvent("subscription_created", "   ", "", "222", "sub-1"))

	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMissingEmail))
	billingMock.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
	chatMock.AssertNotCalled(t, "SyncUsers", mock.Anything, mock.Anything)
}

func TestProcessEvent_FullChain(t *testing.T) {
	billingMock := new(MockBillingStore)
	authMock := new(MockAuthAdmin)
	chatMock := new(MockChatSync)

	billingMock.On("UpsertUser", mock.Anything, mock.MatchedBy(func(r models.BillingRecord) bool {
		return r.Email == "b@y.com" && r.Tier == "standard" &&
			r.LemonSubscriptionID != nil && *r.LemonSubscriptionID == "sub-1"
	})).Return(&models.BillingRecord{Email: "b@y.com", Tier: "standard"}, nil)
	authMock.On("CreateUser", mock.Anything, "b@y.com").Return(&authadmin.User{ID: "uid-1", Email: "b@y.com"}, nil)
	authMock.On("Invite", mock.Anything, "b@y.com", "https://chat.example.com").Return(nil)
	billingMock.On("SetAuthUID", mock.Anything, "b@y.com", "uid-1").Return(nil)
	chatMock.On("SyncUsers", mock.Anything, []models.SyncUser{
		{Email: "b@y.com", Name: "b", Role: "user", Group: "Standard"},
	}).Return(&models.SyncResult{Body: `{"received":1}`}, nil)

	service := newService(testConfig(), billingMock, authMock, chatMock)
	outcome, err := service.ProcessEvent(context.Background(), newEvent("subscription_created", "B@y.com", "", "222", "sub-1"))

	require.NoError(t, err)
	assert.False(t, outcome.Ignored)
	assert.Equal(t, "b@y.com", outcome.Email)
	assert.Equal(t, "standard", outcome.Tier)
	assert.Equal(t, "Standard", outcome.Group)
	assert.Equal(t, `{"received":1}`, outcome.ChatResponse)

	billingMock.AssertExpectations(t)
	authMock.AssertExpectations(t)
	chatMock.AssertExpectations(t)
}

func TestProcessEvent_TierRefreshedFromStoredRow(t *testing.T) {
	// Хранилище может вернуть другой тариф (например, после смены плана)
	billingMock := new(MockBillingStore)
	authMock := new(MockAuthAdmin)
	chatMock := new(MockChatSync)

	billingMock.On("UpsertUser", mock.Anything, mock.Anything).
		Return(&models.BillingRecord{Email: "b@y.com", Tier: "pro"}, nil)
	authMock.On("CreateUser", mock.Anything, "b@y.com").Return(nil, errors.New("auth down"))
	authMock.On("Invite", mock.Anything, "b@y.com", mock.Anything).Return(nil)
	chatMock.On("SyncUsers", mock.Anything, mock.MatchedBy(func(users []models.SyncUser) bool {
		return len(users) == 1 && users[0].Group == "Pro"
	})).Return(&models.SyncResult{}, nil)

	service := newService(testConfig(), billingMock, authMock, chatMock)
	outcome, err := service.ProcessEvent(context.Background(), newEvent("subscription_updated", "b@y.com", "", "222", "sub-1"))

	require.NoError(t, err)
	assert.Equal(t, "pro", outcome.Tier)
	assert.Equal(t, "Pro", outcome.Group)
	billingMock.AssertNotCalled(t, "SetAuthUID", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessEvent_BestEffortFailuresDoNotAbort(t *testing.T) {
	billingMock := new(MockBillingStore)
	authMock := new(MockAuthAdmin)
	chatMock := new(MockChatSync)

	billingMock.On("UpsertUser", mock.Anything, mock.Anything).Return(nil, errors.New("store down"))
	authMock.On("CreateUser", mock.Anything, "b@y.com").Return(&authadmin.User{ID: "uid-1"}, nil)
	authMock.On("Invite", mock.Anything, "b@y.com", mock.Anything).Return(errors.New("smtp down"))
	billingMock.On("SetAuthUID", mock.Anything, "b@y.com", "uid-1").Return(errors.New("store down"))
	// Тариф берётся из события, так как запись не сохранилась
	chatMock.On("SyncUsers", mock.Anything, []models.SyncUser{
		{Email: "b@y.com", Name: "b", Role: "user", Group: "Pro"},
	}).Return(&models.SyncResult{}, nil)

	service := newService(testConfig(), billingMock, authMock, chatMock)
	outcome, err := service.ProcessEvent(context.Background(), newEvent("subscription_created", "b@y.com", "", "333", "sub-9"))

	require.NoError(t, err)
	assert.Equal(t, "pro", outcome.Tier)
	chatMock.AssertExpectations(t)
}

func TestProcessEvent_MissingBillingConfigDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.BillingStore = config.BillingStore{}

	billingMock := new(MockBillingStore)
	chatMock := new(MockChatSync)
	chatMock.On("SyncUsers", mock.Anything, []models.SyncUser{
		{Email: "b@y.com", Name: "b", Role: "user", Group: "Standard"},
	}).Return(&models.SyncResult{}, nil)

	service := newService(cfg, billingMock, new(MockAuthAdmin), chatMock)
	outcome, err := service.ProcessEvent(context.Background(), newEvent("subscription_created", "b@y.com", "", "222", "sub-1"))

	require.NoError(t, err)
	assert.Equal(t, "standard", outcome.Tier)
	billingMock.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
}

func TestProcessEvent_MissingChatConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ChatSync = config.ChatSync{}

	billingMock := new(MockBillingStore)
	authMock := new(MockAuthAdmin)
	billingMock.On("UpsertUser", mock.Anything, mock.Anything).
		Return(&models.BillingRecord{Email: "b@y.com", Tier: "standard"}, nil)
	authMock.On("CreateUser", mock.Anything, "b@y.com").Return(&authadmin.User{ID: "uid-1"}, nil)
	authMock.On("Invite", mock.Anything, "b@y.com", mock.Anything).Return(nil)
	billingMock.On("SetAuthUID", mock.Anything, "b@y.com", "uid-1").Return(nil)

	service := newService(cfg, billingMock, authMock, new(MockChatSync))
	outcome, err := service.ProcessEvent(context.Background(), newEvent("subscription_created", "b@y.com", "", "222", "sub-1"))

	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing chat sync settings")
}

func TestProcessEvent_UnknownVariantFallsToFree(t *testing.T) {
	billingMock := new(MockBillingStore)
	authMock := new(MockAuthAdmin)
	chatMock := new(MockChatSync)

	billingMock.On("UpsertUser", mock.Anything, mock.MatchedBy(func(r models.BillingRecord) bool {
		return r.Tier == "free"
	})).Return(&models.BillingRecord{Email: "b@y.com", Tier: "free"}, nil)
	authMock.On("CreateUser", mock.Anything, "b@y.com").Return(&authadmin.User{ID: "uid-1"}, nil)
	authMock.On("Invite", mock.Anything, "b@y.com", mock.Anything).Return(nil)
	billingMock.On("SetAuthUID", mock.Anything, "b@y.com", "uid-1").Return(nil)
	chatMock.On("SyncUsers", mock.Anything, mock.MatchedBy(func(users []models.SyncUser) bool {
		return users[0].Group == "Student"
	})).Return(&models.SyncResult{}, nil)

	service := newService(testConfig(), billingMock, authMock, chatMock)
	outcome, err := service.ProcessEvent(context.Background(), newEvent("subscription_created", "b@y.com", "", "999", "sub-1"))

	require.NoError(t, err)
	assert.Equal(t, "free", outcome.Tier)
	assert.Equal(t, "Student", outcome.Group)
}

func TestClassifyTier(t *testing.T) {
	variants := config.TierVariants{Free: "111", Standard: "222", Pro: "333"}

	tests := []struct {
		name      string
		variants  config.TierVariants
		variantID string
		expected  string
	}{
		{"вариант free", variants, "111", "free"},
		{"вариант standard", variants, "222", "standard"},
		{"вариант pro", variants, "333", "pro"},
		{"нераспознанный вариант", variants, "999", "free"},
		{"пустой variant_id", variants, "", "free"},
		{"пустой конфиг не матчит пустую строку", config.TierVariants{}, "", "free"},
		{"пустой конфиг не матчит непустой id", config.TierVariants{}, "222", "free"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyTier(tt.variants, tt.variantID))
		})
	}
}

func TestProcessEvent_NameFallsBackToLocalPart(t *testing.T) {
	billingMock := new(MockBillingStore)
	authMock := new(MockAuthAdmin)
	chatMock := new(MockChatSync)

	billingMock.On("UpsertUser", mock.Anything, mock.Anything).
		Return(&models.BillingRecord{Email: "carol@z.org", Tier: "free"}, nil)
	authMock.On("CreateUser", mock.Anything, "carol@z.org").Return(&authadmin.User{ID: "uid-3"}, nil)
	authMock.On("Invite", mock.Anything, "carol@z.org", mock.Anything).Return(nil)
	billingMock.On("SetAuthUID", mock.Anything, "carol@z.org", "uid-3").Return(nil)
	chatMock.On("SyncUsers", mock.Anything, mock.MatchedBy(func(users []models.SyncUser) bool {
		return users[0].Name == "carol"
	})).Return(&models.SyncResult{}, nil)

	service := newService(testConfig(), billingMock, authMock, chatMock)
	_, err := service.ProcessEvent(context.Background(), newEvent("subscription_created", "carol@z.org", "", "", "sub-2"))

	require.NoError(t, err)
	chatMock.AssertExpectations(t)
}
