package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	defaultEnvFile  = "keys.env"

	// PathEnv names the variable holding the YAML config path.
	PathEnv             = "NEWS_FORWARDER_CONFIG"
	envFileEnv          = "NEWS_FORWARDER_ENV_FILE"
	telegramTokenEnv    = "TELEGRAM_TOKEN"
	channelIDEnv        = "CHANNEL_ID"
	forwardChannelEnv   = "FORWARD_CHANNEL_ID"
	fashionChannelEnv   = "FASHION_CHANNEL_ID"
	financeChannelEnv   = "FINANCE_CHANNEL_ID"
	deepSeekAPIKeyEnv   = "DEEPSEEK_API_KEY"
	vkDefaultTokenEnv   = "VK_DEFAULT_TOKEN"
	vkFashionTokenEnv   = "VK_FASHION_TOKEN"
	vkDefaultGroupEnv   = "VK_DEFAULT_GROUP_ID"
	vkFashionGroupEnv   = "VK_FASHION_GROUP_ID"
	yandexFunctionIDEnv = "YANDEX_FUNCTION_ID"
	databasePathEnv     = "DATABASE_PATH"
	redisAddrEnv        = "REDIS_ADDR"
	shortsBucketEnv     = "SHORTS_BUCKET"
	logLevelEnv         = "LOG_LEVEL"
	httpAddrEnv         = "HTTP_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Browser    BrowserConfig    `yaml:"browser"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	DeepSeek   DeepSeekConfig   `yaml:"deepseek"`
	VK         VKConfig         `yaml:"vk"`
	Speech     SpeechConfig     `yaml:"speech"`
	Media      MediaConfig      `yaml:"media"`
	Archive    ArchiveConfig    `yaml:"archive"`
	HTTP       HTTPConfig       `yaml:"http"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Sources    []SourceConfig   `yaml:"sources"`
}

// LoggingConfig selects slog level, handler format and an optional log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// StorageConfig points at the sqlite file and the optional redis seen cache.
type StorageConfig struct {
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redisAddr"`
	RedisKey  string `yaml:"redisKey"`
}

// SchedulerConfig defines when ingestion passes run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// IngestConfig controls pacing and staging of the publish loop.
type IngestConfig struct {
	PostDelay time.Duration `yaml:"postDelay"`
	ImageDir  string        `yaml:"imageDir"`
	MaxImages int           `yaml:"maxImages"`
}

// BrowserConfig configures how article pages are rendered.
type BrowserConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Engine             string        `yaml:"engine"`
	Headless           bool          `yaml:"headless"`
	ContinueTimeout    time.Duration `yaml:"continueTimeout"`
	SettleDelay        time.Duration `yaml:"settleDelay"`
	MaxConcurrentPages int           `yaml:"maxConcurrentPages"`
}

// TelegramConfig wires the bot token and every destination chat.
type TelegramConfig struct {
	BotToken         string        `yaml:"botToken"`
	ChannelID        string        `yaml:"channelId"`
	ForwardChannelID string        `yaml:"forwardChannelId"`
	FashionChannelID string        `yaml:"fashionChannelId"`
	FinanceChannelID string        `yaml:"financeChannelId"`
	APIBaseURL       string        `yaml:"apiBaseUrl"`
	PollTimeout      time.Duration `yaml:"pollTimeout"`
}

// DeepSeekConfig defines how to contact the rewrite endpoint.
type DeepSeekConfig struct {
	BaseURL   string `yaml:"baseUrl"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey"`
	MaxTokens int    `yaml:"maxTokens"`
	MaxLength int    `yaml:"maxLength"`
}

// VKConfig holds both credential/group pairs and the post settings.
type VKConfig struct {
	DefaultToken   string        `yaml:"defaultToken"`
	FashionToken   string        `yaml:"fashionToken"`
	DefaultGroupID string        `yaml:"defaultGroupId"`
	FashionGroupID string        `yaml:"fashionGroupId"`
	DefaultFooter  string        `yaml:"defaultFooter"`
	FashionFooter  string        `yaml:"fashionFooter"`
	APIBaseURL     string        `yaml:"apiBaseUrl"`
	APIVersion     string        `yaml:"apiVersion"`
	PublishDelay   time.Duration `yaml:"publishDelay"`
}

// SpeechConfig configures the IAM function and the TTS endpoint.
type SpeechConfig struct {
	FunctionID  string        `yaml:"functionId"`
	IdentityURL string        `yaml:"identityUrl"`
	Endpoint    string        `yaml:"endpoint"`
	Voice       string        `yaml:"voice"`
	Speed       float64       `yaml:"speed"`
	TokenTTL    time.Duration `yaml:"tokenTtl"`
}

// MediaConfig points at the font and the staging directories for shorts.
type MediaConfig struct {
	FontPath  string  `yaml:"fontPath"`
	FontSize  float64 `yaml:"fontSize"`
	TmpDir    string  `yaml:"tmpDir"`
	OutputDir string  `yaml:"outputDir"`
	FFmpegBin string  `yaml:"ffmpegBin"`
}

// ArchiveConfig enables uploading generated shorts to S3.
type ArchiveConfig struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

// HTTPConfig exposes the status endpoints when Addr is set.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SupervisorConfig sets the restart policy of long-running tasks.
type SupervisorConfig struct {
	RestartDelay time.Duration `yaml:"restartDelay"`
	MaxRestarts  int           `yaml:"maxRestarts"`
}

// SourceConfig describes a single listing page and its scanner strategy.
type SourceConfig struct {
	Name             string `yaml:"name"`
	Scanner          string `yaml:"scanner"`
	URL              string `yaml:"url"`
	Category         string `yaml:"category"`
	KeepInlineMarkup bool   `yaml:"keepInlineMarkup"`
}

// Load reads keys.env and YAML configuration (if present) and applies environment overrides.
func Load() (Config, error) {
	envFile := os.Getenv(envFileEnv)
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load %s: %v", envFile, err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(PathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg, cfg.Validate()
}

// Validate reports every missing key required to start the bot.
func (c Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{telegramTokenEnv, c.Telegram.BotToken},
		{channelIDEnv, c.Telegram.ChannelID},
		{deepSeekAPIKeyEnv, c.DeepSeek.APIKey},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{telegramTokenEnv, &c.Telegram.BotToken},
		{channelIDEnv, &c.Telegram.ChannelID},
		{forwardChannelEnv, &c.Telegram.ForwardChannelID},
		{fashionChannelEnv, &c.Telegram.FashionChannelID},
		{financeChannelEnv, &c.Telegram.FinanceChannelID},
		{deepSeekAPIKeyEnv, &c.DeepSeek.APIKey},
		{vkDefaultTokenEnv, &c.VK.DefaultToken},
		{vkFashionTokenEnv, &c.VK.FashionToken},
		{vkDefaultGroupEnv, &c.VK.DefaultGroupID},
		{vkFashionGroupEnv, &c.VK.FashionGroupID},
		{yandexFunctionIDEnv, &c.Speech.FunctionID},
		{databasePathEnv, &c.Storage.Path},
		{redisAddrEnv, &c.Storage.RedisAddr},
		{shortsBucketEnv, &c.Archive.Bucket},
		{logLevelEnv, &c.Logging.Level},
		{httpAddrEnv, &c.HTTP.Addr},
	}

	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeString(base *string, override string) {
	if override != "" {
		*base = override
	}
}

func mergeDuration(base *time.Duration, override time.Duration) {
	if override > 0 {
		*base = override
	}
}

func mergeInt(base *int, override int) {
	if override > 0 {
		*base = override
	}
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)
	mergeString(&base.Logging.File, override.Logging.File)

	mergeString(&base.Storage.Path, override.Storage.Path)
	mergeString(&base.Storage.RedisAddr, override.Storage.RedisAddr)
	mergeString(&base.Storage.RedisKey, override.Storage.RedisKey)

	mergeString(&base.Scheduler.CronExpression, override.Scheduler.CronExpression)
	mergeString(&base.Scheduler.Timezone, override.Scheduler.Timezone)

	mergeDuration(&base.Ingest.PostDelay, override.Ingest.PostDelay)
	mergeString(&base.Ingest.ImageDir, override.Ingest.ImageDir)
	mergeInt(&base.Ingest.MaxImages, override.Ingest.MaxImages)

	// a browser section in the file is taken whole so enabled/headless can be switched off
	if override.Browser.Engine != "" {
		base.Browser.Enabled = override.Browser.Enabled
		base.Browser.Headless = override.Browser.Headless
		base.Browser.Engine = override.Browser.Engine
	}
	mergeDuration(&base.Browser.ContinueTimeout, override.Browser.ContinueTimeout)
	mergeDuration(&base.Browser.SettleDelay, override.Browser.SettleDelay)
	mergeInt(&base.Browser.MaxConcurrentPages, override.Browser.MaxConcurrentPages)

	mergeString(&base.Telegram.BotToken, override.Telegram.BotToken)
	mergeString(&base.Telegram.ChannelID, override.Telegram.ChannelID)
	mergeString(&base.Telegram.ForwardChannelID, override.Telegram.ForwardChannelID)
	mergeString(&base.Telegram.FashionChannelID, override.Telegram.FashionChannelID)
	mergeString(&base.Telegram.FinanceChannelID, override.Telegram.FinanceChannelID)
	mergeString(&base.Telegram.APIBaseURL, override.Telegram.APIBaseURL)
	mergeDuration(&base.Telegram.PollTimeout, override.Telegram.PollTimeout)

	mergeString(&base.DeepSeek.BaseURL, override.DeepSeek.BaseURL)
	mergeString(&base.DeepSeek.Model, override.DeepSeek.Model)
	mergeString(&base.DeepSeek.APIKey, override.DeepSeek.APIKey)
	mergeInt(&base.DeepSeek.MaxTokens, override.DeepSeek.MaxTokens)
	mergeInt(&base.DeepSeek.MaxLength, override.DeepSeek.MaxLength)

	mergeString(&base.VK.DefaultToken, override.VK.DefaultToken)
	mergeString(&base.VK.FashionToken, override.VK.FashionToken)
	mergeString(&base.VK.DefaultGroupID, override.VK.DefaultGroupID)
	mergeString(&base.VK.FashionGroupID, override.VK.FashionGroupID)
	mergeString(&base.VK.DefaultFooter, override.VK.DefaultFooter)
	mergeString(&base.VK.FashionFooter, override.VK.FashionFooter)
	mergeString(&base.VK.APIBaseURL, override.VK.APIBaseURL)
	mergeString(&base.VK.APIVersion, override.VK.APIVersion)
	mergeDuration(&base.VK.PublishDelay, override.VK.PublishDelay)

	mergeString(&base.Speech.FunctionID, override.Speech.FunctionID)
	mergeString(&base.Speech.IdentityURL, override.Speech.IdentityURL)
	mergeString(&base.Speech.Endpoint, override.Speech.Endpoint)
	mergeString(&base.Speech.Voice, override.Speech.Voice)
	if override.Speech.Speed > 0 {
		base.Speech.Speed = override.Speech.Speed
	}
	mergeDuration(&base.Speech.TokenTTL, override.Speech.TokenTTL)

	mergeString(&base.Media.FontPath, override.Media.FontPath)
	if override.Media.FontSize > 0 {
		base.Media.FontSize = override.Media.FontSize
	}
	mergeString(&base.Media.TmpDir, override.Media.TmpDir)
	mergeString(&base.Media.OutputDir, override.Media.OutputDir)
	mergeString(&base.Media.FFmpegBin, override.Media.FFmpegBin)

	if override.Archive.Bucket != "" {
		base.Archive = override.Archive
	}

	mergeString(&base.HTTP.Addr, override.HTTP.Addr)

	mergeDuration(&base.Supervisor.RestartDelay, override.Supervisor.RestartDelay)
	mergeInt(&base.Supervisor.MaxRestarts, override.Supervisor.MaxRestarts)

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Storage:   StorageConfig{Path: "msn_news.db", RedisKey: "newsforwarder:seen"},
		Scheduler: SchedulerConfig{CronExpression: "@every 30m", Timezone: defaultTimezone, location: tz},
		Ingest:    IngestConfig{PostDelay: 2 * time.Second, ImageDir: "img/msn", MaxImages: 10},
		Browser: BrowserConfig{
			Enabled:            true,
			Engine:             "firefox",
			Headless:           true,
			ContinueTimeout:    20 * time.Second,
			SettleDelay:        3 * time.Second,
			MaxConcurrentPages: 4,
		},
		Telegram: TelegramConfig{
			APIBaseURL:  "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
		},
		DeepSeek: DeepSeekConfig{
			BaseURL:   "https://api.deepseek.com/v1",
			Model:     "deepseek-chat",
			MaxTokens: 750,
			MaxLength: 980,
		},
		VK: VKConfig{
			DefaultFooter: "https://t.me/financemonitoring",
			FashionFooter: "https://t.me/women_fashionstyle",
			APIBaseURL:    "https://api.vk.com/method",
			APIVersion:    "5.199",
			PublishDelay:  600 * time.Second,
		},
		Speech: SpeechConfig{
			IdentityURL: "https://functions.yandexcloud.net",
			Endpoint:    "tts.api.cloud.yandex.net:443",
			Voice:       "filipp",
			Speed:       1.1,
			TokenTTL:    time.Hour,
		},
		Media: MediaConfig{
			FontPath:  "fonts/DejaVuSans.ttf",
			FontSize:  50,
			TmpDir:    "tmp",
			OutputDir: "shorts",
			FFmpegBin: "ffmpeg",
		},
		Archive:    ArchiveConfig{Prefix: "shorts/"},
		Supervisor: SupervisorConfig{RestartDelay: 10 * time.Second},
		Sources:    defaultSources(),
	}
}

func defaultSources() []SourceConfig {
	const base = "https://www.msn.com/en-us/channel/source/"
	return []SourceConfig{
		{Name: "Cryptopolitan", Scanner: "msn", Category: "default",
			URL: base + "Cryptopolitan/sr-cid-5d9aa60cd5b751a0?cvid=d79d0b87437e4c42bcbac4f357787bb1&ei=4"},
		{Name: "CoinDesk", Scanner: "msn", Category: "default",
			URL: base + "CoinDesk/sr-vid-24nuhyyhqjwd8gwmwc58wwedksacv5dfsifbxr9hy57viwe4v5xa?ocid=msedgntp&cvid=8277ce8140c142d5bdfba053421428e9&ei=1"},
		{Name: "CoinTelegraph", Scanner: "msn", Category: "default", KeepInlineMarkup: true,
			URL: base + "Coin%20Telegraph/sr-vid-2hru70snc0jyk9hdjii9ggmievarhp55v4ewdgf8rrajvvnbpfxa?ocid=msedgntp&cvid=dcfab9d953ff498f986b6a978ecc61ac&ei=8"},
		{Name: "Bloomberg", Scanner: "msn", Category: "default",
			URL: base + "Bloomberg/sr-vid-08gw7ky4u229xjsjvnf4n6n7v67gxm0pjmv9fr4y2x9jjmwcri4s?item=flightsprg-tipsubsc-v1a%3Floadi&cvid=57ba83f2c655480ca891d077efa8f2ed&ei=11"},
		{Name: "InStyle", Scanner: "msn", Category: "fashion",
			URL: base + "InStyle/sr-vid-v69869a93qsbvidbhbnpdrp6bn9cax3yibkp5dbc5wdit2vkbema?ocid=msedgntp&cvid=5c5dca5935174db2939fe0255ba7049f&ei=14"},
		{Name: "ELLE US", Scanner: "msn", Category: "fashion",
			URL: base + "ELLE%20US/sr-vid-0gfi0p87cpg5dkrkd9ah7k4h7jebaeufu8c0pdt4cbewim5r4s0s?ocid=msedgntp&cvid=bc3d734afb9b4033a2ed8b2c0e4d0641&ei=6"},
		{Name: "Redbook", Scanner: "msn", Category: "fashion",
			URL: base + "Redbook/sr-vid-9x9tj4dghqp3kpdq6nvcxuxvejyn9i4j6e99wvwswj9hgikvx35s?ocid=msedgntp&cvid=7cf996d611a8433f8c64568db1b523a5&ei=4"},
		{Name: "Woman's Day", Scanner: "msn", Category: "fashion",
			URL: base + "Womans%20Day/sr-vid-aj5ja2k0nq3frvkmauarpcu2h6avpr7b48400j5inrnktshqf2ya?ocid=msedgntp&cvid=97da98d6f05040d785e08da4c2b5cb15&ei=4"},
		{Name: "Fashion Times", Scanner: "msn", Category: "fashion",
			URL: base + "Fashion%20Times/sr-vid-smfkuh4ainj0bscfqkhcrt39i0ehmrxwsk23kf3bucftnmf8bt2a?ocid=msedgntp"},
	}
}
