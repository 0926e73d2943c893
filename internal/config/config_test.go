package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
	dir string
}

func (s *ConfigSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigSuite) TestLoadMissingFileReturnsDefaults() {
	cfg, err := Load(filepath.Join(s.dir, "no-such.yaml"))
	s.Require().NoError(err)
	s.Equal("sqlite", cfg.Store.Backend)
	s.Equal(30*time.Minute, cfg.Engine.SessionExpiry)
	s.Equal(":8420", cfg.Server.Addr)
}

func (s *ConfigSuite) TestSaveLoadRoundTrip() {
	path := filepath.Join(s.dir, "config.yaml")
	cfg := Default()
	cfg.Server.Addr = ":9000"
	cfg.Engine.MaxFollowUps = 3
	cfg.LogLevel = "debug"
	s.Require().NoError(cfg.Save(path))

	loaded, err := Load(path)
	s.Require().NoError(err)
	s.Equal(":9000", loaded.Server.Addr)
	s.Equal(3, loaded.Engine.MaxFollowUps)
	s.Equal("debug", loaded.LogLevel)
}

func (s *ConfigSuite) TestPartialFileKeepsDefaults() {
	path := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("server:\n  addr: \":7777\"\n"), 0o644))

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal(":7777", cfg.Server.Addr)
	s.Equal("memory", cfg.Cache.Backend)
	s.Equal(5*time.Minute, cfg.Engine.PredictionTTL)
}

func (s *ConfigSuite) TestInvalidBackendRejected() {
	path := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("store:\n  backend: mongodb\n"), 0o644))

	_, err := Load(path)
	s.Require().Error(err)
	s.Contains(err.Error(), "unknown store backend")
}

func (s *ConfigSuite) TestPostgresRequiresDSN() {
	path := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("store:\n  backend: postgres\n"), 0o644))

	_, err := Load(path)
	s.Require().Error(err)
	s.Contains(err.Error(), "postgres_dsn")
}

func (s *ConfigSuite) TestMalformedYAML() {
	path := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	s.Require().Error(err)
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}
