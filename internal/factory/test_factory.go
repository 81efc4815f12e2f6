package factory

import (
	"time"

	"github.com/mcoot/discordgate/internal/chat"
	"github.com/mcoot/discordgate/internal/config"
	"github.com/mcoot/discordgate/internal/dependencies/mocks"
	"github.com/mcoot/discordgate/internal/storage/memory"
	"github.com/mcoot/discordgate/internal/testutil"
)

// Fixed identifiers used by TestApp
const (
	TestGuildID = "200000000000000002"
	TestRoleID  = "300000000000000003"
	TestAdminID = "900000000000000009"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock     *mocks.MockClock
	MockRandom    *mocks.MockRandom
	MockScheduler *mocks.MockScheduler
}

// NewTestApp creates an App configured for testing: memory storage,
// mocked clock, random, and scheduler, and the given chat client
func NewTestApp(chatClient chat.Client) *TestApp {
	cfg := &config.Config{
		Discord: config.DiscordConfig{
			GuildID: TestGuildID,
			RoleID:  TestRoleID,
			AdminID: TestAdminID,
		},
		Auth: config.AuthConfig{
			MaxFailures:   config.DefaultMaxFailures,
			BlockDuration: config.DefaultBlockDuration,
			VerifyWindow:  config.DefaultVerifyWindow,
		},
	}

	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockScheduler := mocks.NewMockScheduler()

	app := newWithDependencies(cfg, memory.New(), chatClient,
		mockClock, mockRandom, mockScheduler, testutil.NopLogger())

	return &TestApp{
		App:           app,
		MockClock:     mockClock,
		MockRandom:    mockRandom,
		MockScheduler: mockScheduler,
	}
}
