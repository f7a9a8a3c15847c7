package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	speechmodel "github.com/zhouzirui/crickgenius/internal/model/speech"
)

// Config 聚合后端与客户端的配置项。
type Config struct {
	Server ServerConfig
	Client ClientConfig
	Store  StoreConfig
	Auth   AuthConfig
	CORS   CORSConfig
	AI      AIConfig
	Cricket CricketConfig
	Speech  SpeechConfig
}

// Load 从环境变量加载配置，CONFIG_FILE 指向的 TOML 文件只补充未设置的变量。
func Load() (*Config, error) {
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(path); err != nil {
			return nil, err
		}
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	cricket, err := loadCricketConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Client: ClientConfig{BackendURL: strings.TrimRight(getEnvOrDefault("BACKEND_URL", "http://localhost:5001"), "/")},
		Store:  StoreConfig{Path: getEnvOrDefault("DB_PATH", "database.db")},
		Auth:   auth,
		CORS:   CORSConfig{Origin: getEnvOrDefault("CORS_ORIGIN", "http://localhost:3000")},
		AI:      ai,
		Cricket: cricket,
		Speech:  speech,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// ClientConfig 描述终端客户端连接的后端。
type ClientConfig struct {
	BackendURL string
}

// StoreConfig 描述 SQLite 存储位置。
type StoreConfig struct {
	Path string
}

// AuthConfig 描述会话 cookie 的签名与有效期。
type AuthConfig struct {
	Secret       string
	Lifetime     time.Duration
	CookieSecure bool
}

// CORSConfig 允许携带凭证的前端来源。
type CORSConfig struct {
	Origin string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5001"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5001" 或 "127.0.0.1:5001"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func loadAuthConfig() (AuthConfig, error) {
	lifetime, err := parseOptionalIntEnv("SESSION_LIFETIME")
	if err != nil {
		return AuthConfig{}, err
	}
	seconds := 3600
	if lifetime != nil {
		if *lifetime <= 0 {
			return AuthConfig{}, fmt.Errorf("invalid SESSION_LIFETIME value %d: must be positive", *lifetime)
		}
		seconds = *lifetime
	}

	secure, err := parseBoolEnv("SESSION_COOKIE_SECURE", false)
	if err != nil {
		return AuthConfig{}, err
	}

	secret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if secret == "" {
		// 未配置时随机生成，重启后已有会话失效
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return AuthConfig{}, fmt.Errorf("generate session secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		log.Println("[config] SESSION_SECRET not set, using a random secret")
	}

	return AuthConfig{
		Secret:       secret,
		Lifetime:     time.Duration(seconds) * time.Second,
		CookieSecure: secure,
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	HistoryLimit int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	history := 10
	if override, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		history = max(*override, 0)
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("Model")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		HistoryLimit: history,
	}, nil
}

// CricketConfig 描述 cricapi 数据源，未配置 key 时不查询
type CricketConfig struct {
	APIKey   string
	BaseURL  string
	CacheTTL time.Duration
}

func (c CricketConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadCricketConfig() (CricketConfig, error) {
	ttl, err := parseOptionalIntEnv("CRIC_CACHE_TTL")
	if err != nil {
		return CricketConfig{}, err
	}
	seconds := 600
	if ttl != nil {
		if *ttl <= 0 {
			return CricketConfig{}, fmt.Errorf("invalid CRIC_CACHE_TTL value %d: must be positive", *ttl)
		}
		seconds = *ttl
	}

	return CricketConfig{
		APIKey:   strings.TrimSpace(os.Getenv("CRIC_API_KEY")),
		BaseURL:  getEnvOrDefault("CRIC_API_URL", "https://api.cricapi.com/v1/"),
		CacheTTL: time.Duration(seconds) * time.Second,
	}, nil
}

// SpeechConfig 描述语音识别相关配置
type SpeechConfig struct {
	AppID          string
	AccessToken    string
	APIKey         string
	ConcurrentMode bool
	ASRURL         string
	ASRModel       string
	ASRLanguage    string
	SampleRate     int
	Timeout        int
	Enabled        bool
}

// Model 转换为识别器使用的配置
func (c SpeechConfig) Model() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		AppID:          c.AppID,
		AccessToken:    c.AccessToken,
		APIKey:         c.APIKey,
		ConcurrentMode: c.ConcurrentMode,
		ASRURL:         c.ASRURL,
		ASRModel:       c.ASRModel,
		ASRLanguage:    c.ASRLanguage,
		SampleRate:     c.SampleRate,
		Timeout:        c.Timeout,
	}
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	rate, err := parseOptionalIntEnv("SPEECH_SAMPLE_RATE")
	if err != nil {
		return SpeechConfig{}, err
	}
	sampleRate := 16000
	if rate != nil {
		sampleRate = *rate
	}

	concurrent, err := parseBoolEnv("SPEECH_CONCURRENT_MODE", false)
	if err != nil {
		return SpeechConfig{}, err
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))
	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if accessToken == "" {
		accessToken = apiKey
	}

	return SpeechConfig{
		AppID:          appID,
		AccessToken:    accessToken,
		APIKey:         apiKey,
		ConcurrentMode: concurrent,
		ASRURL:         getEnvOrDefault("SPEECH_ASR_URL", ""),
		ASRModel:       getEnvOrDefault("SPEECH_ASR_MODEL", "bigmodel"),
		ASRLanguage:    getEnvOrDefault("SPEECH_ASR_LANGUAGE", "en-US"),
		SampleRate:     sampleRate,
		Timeout:        timeoutSeconds,
		Enabled:        appID != "" && accessToken != "",
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
