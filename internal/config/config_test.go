package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/discordgate/internal/testutil"
)

const validConfig = `discord:
  token: "bot-token"
  guild_id: "200000000000000002"
  role_id: "300000000000000003"
  admin_id: "900000000000000009"
auth:
  max_failures: 5
  block_duration: 10m
  verify_window: 2m
storage:
  type: memory
server:
  port: 9090
`

type ConfigSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigSuite) writeConfig(content string) string {
	path := filepath.Join(s.dir, "discordgate.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *ConfigSuite) TestLoadValidConfig() {
	path := s.writeConfig(validConfig)

	cfg, err := Load(path, testutil.NopLogger())
	s.Require().NoError(err)

	s.Equal("bot-token", cfg.Discord.Token)
	s.Equal("200000000000000002", cfg.Discord.GuildID)
	s.Equal("300000000000000003", cfg.Discord.RoleID)
	s.Equal("900000000000000009", cfg.Discord.AdminID)
	s.Equal(5, cfg.Auth.MaxFailures)
	s.Equal(10*time.Minute, cfg.Auth.BlockDuration)
	s.Equal(2*time.Minute, cfg.Auth.VerifyWindow)
	s.Equal(StorageTypeMemory, cfg.Storage.Type)
	s.Equal(9090, cfg.Server.Port)
}

func (s *ConfigSuite) TestMissingFileWritesDefault() {
	path := filepath.Join(s.dir, "discordgate.yaml")

	_, err := Load(path, testutil.NopLogger())
	s.ErrorIs(err, ErrDefaultWritten)

	// The generated file parses, but fails validation until credentials
	// are filled in
	data, readErr := os.ReadFile(path)
	s.Require().NoError(readErr)
	s.Contains(string(data), "token:")

	_, err = Load(path, testutil.NopLogger())
	s.Error(err)
	s.NotErrorIs(err, ErrDefaultWritten)
}

func (s *ConfigSuite) TestMalformedYAMLFails() {
	path := s.writeConfig("discord: [not a mapping")

	_, err := Load(path, testutil.NopLogger())
	s.Error(err)
}

func (s *ConfigSuite) TestMissingTokenFails() {
	path := s.writeConfig(`discord:
  guild_id: "200000000000000002"
  role_id: "300000000000000003"
`)

	_, err := Load(path, testutil.NopLogger())
	s.ErrorContains(err, "discord.token")
}

func (s *ConfigSuite) TestNonNumericGuildIDFails() {
	path := s.writeConfig(`discord:
  token: "bot-token"
  guild_id: "my-server"
  role_id: "300000000000000003"
`)

	_, err := Load(path, testutil.NopLogger())
	s.ErrorContains(err, "discord.guild_id")
}

func (s *ConfigSuite) TestNonNumericAdminIDFails() {
	path := s.writeConfig(`discord:
  token: "bot-token"
  guild_id: "200000000000000002"
  role_id: "300000000000000003"
  admin_id: "alice#1234"
`)

	_, err := Load(path, testutil.NopLogger())
	s.ErrorContains(err, "discord.admin_id")
}

func (s *ConfigSuite) TestEmptyAdminIDIsAllowed() {
	path := s.writeConfig(`discord:
  token: "bot-token"
  guild_id: "200000000000000002"
  role_id: "300000000000000003"
`)

	cfg, err := Load(path, testutil.NopLogger())
	s.Require().NoError(err)
	s.Empty(cfg.Discord.AdminID)
}

func (s *ConfigSuite) TestUnknownStorageTypeFails() {
	path := s.writeConfig(`discord:
  token: "bot-token"
  guild_id: "200000000000000002"
  role_id: "300000000000000003"
storage:
  type: postgres
`)

	_, err := Load(path, testutil.NopLogger())
	s.ErrorContains(err, "storage.type")
}

func (s *ConfigSuite) TestPolicyDefaultsApplied() {
	path := s.writeConfig(`discord:
  token: "bot-token"
  guild_id: "200000000000000002"
  role_id: "300000000000000003"
auth:
  max_failures: -1
  block_duration: -5m
`)

	cfg, err := Load(path, testutil.NopLogger())
	s.Require().NoError(err)

	s.Equal(DefaultMaxFailures, cfg.Auth.MaxFailures)
	s.Equal(DefaultBlockDuration, cfg.Auth.BlockDuration)
	s.Equal(DefaultVerifyWindow, cfg.Auth.VerifyWindow)
}

func (s *ConfigSuite) TestStorageDefaults() {
	path := s.writeConfig(`discord:
  token: "bot-token"
  guild_id: "200000000000000002"
  role_id: "300000000000000003"
`)

	cfg, err := Load(path, testutil.NopLogger())
	s.Require().NoError(err)

	s.Equal(StorageTypeFile, cfg.Storage.Type)
	s.Equal("data/verified.json", cfg.Storage.Path)
	s.Equal(8080, cfg.Server.Port)
}
