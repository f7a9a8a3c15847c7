package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/crickgenius/internal/dictation"
	speechmodel "github.com/zhouzirui/crickgenius/internal/model/speech"
)

const (
	defaultASRURL     = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_async"
	defaultSampleRate = 16000
	defaultChunkSize  = 6400 // 16kHz, 16bit, mono, 200ms
)

// AudioSource 每次识别打开一段新的 PCM 音频流
type AudioSource func(ctx context.Context) (io.ReadCloser, error)

// Option 配置 Recognizer
type Option func(*Recognizer)

// WithChunkSize 设置单包音频字节数
func WithChunkSize(n int) Option {
	return func(r *Recognizer) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithPace 设置发包间隔，文件输入时用来模拟实时音频
func WithPace(d time.Duration) Option {
	return func(r *Recognizer) { r.pace = d }
}

// Recognizer 火山引擎流式语音识别，实现 dictation.Capability。
// 同一时刻只维护一路识别会话。
type Recognizer struct {
	config    *speechmodel.SpeechConfig
	source    AudioSource
	dialer    *websocket.Dialer
	chunkSize int
	pace      time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

var _ dictation.Capability = (*Recognizer)(nil)

// NewRecognizer 创建识别器
func NewRecognizer(config *speechmodel.SpeechConfig, source AudioSource, opts ...Option) *Recognizer {
	timeout := 30 * time.Second
	if config != nil && config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	r := &Recognizer{
		config:    config,
		source:    source,
		dialer:    &websocket.Dialer{HandshakeTimeout: timeout},
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrUtterance struct {
	Text     string `json:"text"`
	Definite bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int32  `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

// Start 建立连接并开始推流，返回的 channel 在会话结束时关闭
func (r *Recognizer) Start(ctx context.Context) (<-chan dictation.Event, error) {
	appID, token, err := resolveCredentials(r.config)
	if err != nil {
		return nil, err
	}
	if r.source == nil {
		return nil, errors.New("no audio source configured")
	}

	connectID := uuid.NewString()
	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	resourceID := "volc.bigasr.sauc.duration" // 小时版
	if r.config.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent" // 并发版
	}
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	wsURL := strings.TrimSpace(r.config.ASRURL)
	if wsURL == "" {
		wsURL = defaultASRURL
	}

	conn, resp, err := r.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ASR WebSocket: %w", err)
	}
	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			log.Printf("[ASR] connected with logid: %s", logid)
		}
	}

	if err := r.sendFullRequest(conn, connectID); err != nil {
		conn.Close()
		return nil, err
	}

	audio, err := r.source(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open audio source: %w", err)
	}

	stop := make(chan struct{})
	r.mu.Lock()
	if r.stop != nil {
		close(r.stop)
	}
	r.stop = stop
	r.mu.Unlock()

	events := make(chan dictation.Event, 8)
	go r.run(ctx, conn, audio, stop, events)
	return events, nil
}

// Stop 结束推流，服务端返回最终结果后会话关闭
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	return nil
}

func (r *Recognizer) buildRequest(uid string) *asrRequest {
	req := &asrRequest{}
	req.User.UID = uid

	req.Audio.Format = "pcm"
	req.Audio.Codec = "raw"
	req.Audio.Language = r.config.ASRLanguage
	if req.Audio.Language == "" {
		req.Audio.Language = "en-US"
	}
	req.Audio.Rate = r.config.SampleRate
	if req.Audio.Rate <= 0 {
		req.Audio.Rate = defaultSampleRate
	}
	req.Audio.Bits = 16
	req.Audio.Channel = 1

	req.Request.ModelName = r.config.ASRModel
	if req.Request.ModelName == "" {
		req.Request.ModelName = "bigmodel"
	}
	req.Request.EnableITN = true
	req.Request.EnablePunc = true
	req.Request.ShowUtterances = true
	req.Request.ResultType = "full" // 每次返回截至目前的完整文本
	req.Request.EndWindowSize = 800
	return req
}

func (r *Recognizer) sendFullRequest(conn *websocket.Conn, uid string) error {
	payload, err := json.Marshal(r.buildRequest(uid))
	if err != nil {
		return fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	compressed, err := compressPayload(payload, GzipCompression)
	if err != nil {
		return fmt.Errorf("failed to compress payload: %w", err)
	}
	data, err := EncodeMessage(CreateFullClientRequest(compressed, GzipCompression))
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to send ASR request: %w", err)
	}
	return nil
}

func (r *Recognizer) run(ctx context.Context, conn *websocket.Conn, audio io.ReadCloser, stop <-chan struct{}, events chan<- dictation.Event) {
	ctx, cancel := context.WithCancel(ctx)
	defer close(events)
	defer cancel()
	defer conn.Close()
	defer audio.Close()

	emit := func(ev dictation.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		if err := r.sendAudio(ctx, conn, audio, stop); err != nil && ctx.Err() == nil {
			log.Printf("[ASR] send audio failed: %v", err)
		}
	}()

	// ctx 取消时解除阻塞的读
	stopRead := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopRead()

	var last string
	for {
		chunk, done, err := readChunk(conn)
		if err != nil {
			if ctx.Err() == nil {
				emit(dictation.Event{Err: err})
			}
			return
		}
		if chunk != nil && chunk.Text != "" && chunk.Text != last {
			last = chunk.Text
			if !emit(dictation.Event{Transcript: chunk.Text}) {
				return
			}
		}
		if done {
			emit(dictation.Event{End: true})
			return
		}
	}
}

// sendAudio 分包推送音频，音频结束或收到 stop 时发送负序号的结束包
func (r *Recognizer) sendAudio(ctx context.Context, conn *websocket.Conn, audio io.Reader, stop <-chan struct{}) error {
	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		buf := make([]byte, r.chunkSize)
		for {
			n, err := io.ReadFull(audio, buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	sequence := int32(2) // FullClientRequest 占用序号1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return writeAudio(conn, nil, sequence, true)
		case chunk, ok := <-chunks:
			if !ok {
				return writeAudio(conn, nil, sequence, true)
			}
			if err := writeAudio(conn, chunk, sequence, false); err != nil {
				return err
			}
			sequence++
			if r.pace > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(r.pace):
				}
			}
		}
	}
}

func writeAudio(conn *websocket.Conn, chunk []byte, sequence int32, isLast bool) error {
	compressed, err := compressPayload(chunk, GzipCompression)
	if err != nil {
		return fmt.Errorf("failed to compress audio chunk: %w", err)
	}
	data, err := EncodeMessage(CreateAudioOnlyRequest(compressed, sequence, isLast, GzipCompression))
	if err != nil {
		return fmt.Errorf("failed to encode audio message: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}
	return nil
}

// readChunk 读取一帧服务端消息；done 表示识别结束
func readChunk(conn *websocket.Conn) (*speechmodel.StreamingASRChunk, bool, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read ASR response: %w", err)
	}

	msg, err := DecodeMessage(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode ASR message: %w", err)
	}

	switch msg.Header.MessageType {
	case ErrorMessage:
		payload, err := decompressPayload(msg.Payload, msg.Header.CompressionMethod)
		if err != nil {
			return nil, false, fmt.Errorf("ASR error message decode failed: %w", err)
		}
		return nil, false, fmt.Errorf("ASR error %d: %s", msg.ErrorCode, string(payload))

	case FullServerResponse:
		payload, err := decompressPayload(msg.Payload, msg.Header.CompressionMethod)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decompress ASR payload: %w", err)
		}

		var resp asrServerMessage
		if err := json.Unmarshal(payload, &resp); err != nil {
			log.Printf("[ASR] failed to unmarshal response: %v", err)
			return nil, msg.IsLastPacket(), nil
		}
		if resp.Code != 0 && resp.Code != 20000000 {
			return nil, false, fmt.Errorf("ASR API error %d: %s", resp.Code, resp.Message)
		}

		text := resp.Result.Text
		if text == "" {
			text = joinUtterances(resp.Result.Utterances)
		}
		last := msg.IsLastPacket() || resp.Sequence < 0
		return &speechmodel.StreamingASRChunk{
			Text:      strings.TrimSpace(text),
			IsFinal:   last,
			Sequence:  msg.Sequence,
			Duration:  resp.AudioInfo.Duration,
			CreatedAt: time.Now(),
		}, last, nil

	default:
		// 其他类型直接忽略
		return nil, false, nil
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
