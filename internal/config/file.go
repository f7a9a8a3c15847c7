package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// fileKeys 将 TOML 中的 section.key 映射到对应的环境变量
var fileKeys = map[string]string{
	"server.port":            "PORT",
	"client.backend_url":     "BACKEND_URL",
	"store.db_path":          "DB_PATH",
	"auth.secret":            "SESSION_SECRET",
	"auth.lifetime":          "SESSION_LIFETIME",
	"auth.cookie_secure":     "SESSION_COOKIE_SECURE",
	"cors.origin":            "CORS_ORIGIN",
	"ai.api_key":             "ARK_API_KEY",
	"ai.access_key":          "ARK_ACCESS_KEY",
	"ai.secret_key":          "ARK_SECRET_KEY",
	"ai.model":               "Model",
	"ai.base_url":            "ARK_BASE_URL",
	"ai.region":              "ARK_REGION",
	"ai.temperature":         "ARK_TEMPERATURE",
	"ai.top_p":               "ARK_TOP_P",
	"ai.max_tokens":          "ARK_MAX_TOKENS",
	"ai.history_limit":       "AI_HISTORY_LIMIT",
	"cricket.api_key":        "CRIC_API_KEY",
	"cricket.api_url":        "CRIC_API_URL",
	"cricket.cache_ttl":      "CRIC_CACHE_TTL",
	"speech.app_id":          "SPEECH_APP_ID",
	"speech.access_token":    "SPEECH_ACCESS_TOKEN",
	"speech.api_key":         "SPEECH_API_KEY",
	"speech.concurrent_mode": "SPEECH_CONCURRENT_MODE",
	"speech.asr_url":         "SPEECH_ASR_URL",
	"speech.asr_model":       "SPEECH_ASR_MODEL",
	"speech.asr_language":    "SPEECH_ASR_LANGUAGE",
	"speech.sample_rate":     "SPEECH_SAMPLE_RATE",
	"speech.timeout":         "SPEECH_TIMEOUT",
}

// applyFile 读取 TOML 配置文件，为尚未设置的环境变量填充值。
func applyFile(path string) error {
	var sections map[string]map[string]any
	if _, err := toml.DecodeFile(path, &sections); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var unknown []string
	for section, values := range sections {
		for key, value := range values {
			name := strings.ToLower(section + "." + key)
			env, ok := fileKeys[name]
			if !ok {
				unknown = append(unknown, name)
				continue
			}
			if _, set := os.LookupEnv(env); set {
				continue
			}
			if err := os.Setenv(env, fmt.Sprint(value)); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(unknown, ", "))
	}
	return nil
}
