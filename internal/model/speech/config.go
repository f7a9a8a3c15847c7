package speech

// SpeechConfig 语音识别配置
type SpeechConfig struct {
	// Volcengine 凭证
	AppID          string `json:"appId"`            // 火山引擎 APP ID
	AccessToken    string `json:"accessToken"`      // 火山引擎 Access Token
	APIKey         string `json:"apiKey,omitempty"` // 兼容旧配置的 API Key
	ConcurrentMode bool   `json:"concurrentMode"`   // ASR并发模式（false为小时版）

	// ASR 配置
	ASRURL      string `json:"asrUrl"`
	ASRModel    string `json:"asrModel"`
	ASRLanguage string `json:"asrLanguage"`
	SampleRate  int    `json:"sampleRate"`

	// 通用配置
	Timeout int `json:"timeout"` // seconds, handshake only
}
