package speech

import (
	"errors"
	"strings"

	speechmodel "github.com/zhouzirui/crickgenius/internal/model/speech"
)

// ErrMissingCredentials 缺少 AppID 或 AccessToken
var ErrMissingCredentials = errors.New("speech recognition requires SPEECH_APP_ID and SPEECH_ACCESS_TOKEN")

// resolveCredentials 返回规范化后的 AppID 与 AccessToken
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", ErrMissingCredentials
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}
	if appID == "" || token == "" {
		return "", "", ErrMissingCredentials
	}
	return appID, token, nil
}
