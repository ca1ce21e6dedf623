package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMergesYAMLAndEnv(t *testing.T) {
	yamlPath := writeFile(t, "config.yaml", `
scheduler:
  cronExpression: "@every 5m"
  timezone: Europe/Moscow
ingest:
  postDelay: 5s
deepseek:
  maxLength: 800
vk:
  defaultGroupId: "-111"
sources:
  - name: Bloomberg
    scanner: msn
    url: https://www.msn.com/en-us/channel/source/Bloomberg
    category: default
`)
	t.Setenv(PathEnv, yamlPath)
	t.Setenv(envFileEnv, filepath.Join(t.TempDir(), "absent.env"))
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(channelIDEnv, "-100")
	t.Setenv(deepSeekAPIKeyEnv, "sk-test")
	t.Setenv(vkDefaultGroupEnv, "-222")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Scheduler.CronExpression != "@every 5m" {
		t.Fatalf("unexpected cron expression: %s", cfg.Scheduler.CronExpression)
	}
	if cfg.Scheduler.Location().String() != "Europe/Moscow" {
		t.Fatalf("unexpected timezone: %s", cfg.Scheduler.Location())
	}
	if cfg.Ingest.PostDelay != 5*time.Second {
		t.Fatalf("unexpected post delay: %v", cfg.Ingest.PostDelay)
	}
	if cfg.DeepSeek.MaxLength != 800 || cfg.DeepSeek.Model != "deepseek-chat" {
		t.Fatalf("unexpected deepseek config: %+v", cfg.DeepSeek)
	}
	if cfg.VK.DefaultGroupID != "-222" {
		t.Fatalf("env override was not applied: %s", cfg.VK.DefaultGroupID)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "Bloomberg" {
		t.Fatalf("unexpected sources: %+v", cfg.Sources)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	envPath := writeFile(t, "keys.env", "TELEGRAM_TOKEN=from-file\nCHANNEL_ID=-1\nDEEPSEEK_API_KEY=sk-file\n")
	t.Setenv(envFileEnv, envPath)
	t.Setenv(PathEnv, "")
	// godotenv never overrides variables that are already set, so start from empty ones
	for _, key := range []string{telegramTokenEnv, channelIDEnv, deepSeekAPIKeyEnv} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Telegram.BotToken != "from-file" || cfg.DeepSeek.APIKey != "sk-file" {
		t.Fatalf("env file values were not applied: %+v", cfg.Telegram)
	}
	if len(cfg.Sources) != 9 {
		t.Fatalf("expected default sources, got %d", len(cfg.Sources))
	}
}

func TestValidateListsMissingKeys(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Telegram.BotToken = "token"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, channelIDEnv) || !strings.Contains(msg, deepSeekAPIKeyEnv) {
		t.Fatalf("unexpected error message: %s", msg)
	}
	if strings.Contains(msg, telegramTokenEnv) {
		t.Fatalf("present key reported as missing: %s", msg)
	}
}

func TestDefaultSourcesOrder(t *testing.T) {
	t.Parallel()

	sources := defaultSources()
	want := []string{"Cryptopolitan", "CoinDesk", "CoinTelegraph", "Bloomberg", "InStyle", "ELLE US", "Redbook", "Woman's Day", "Fashion Times"}
	for i, name := range want {
		if sources[i].Name != name {
			t.Fatalf("source %d: expected %s, got %s", i, name, sources[i].Name)
		}
	}
	if !sources[2].KeepInlineMarkup {
		t.Fatalf("CoinTelegraph should keep inline markup")
	}
	if sources[4].Category != "fashion" {
		t.Fatalf("InStyle should be fashion")
	}
}
