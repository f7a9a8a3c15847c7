package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/crickgenius/internal/config"
	"github.com/zhouzirui/crickgenius/internal/service/speech"
)

// speechtester 把本地 PCM 文件当作麦克风，直接跑一次流式识别，便于排查凭证和网络问题。
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	if !cfg.Speech.Enabled {
		log.Fatal("语音服务未启用，请先配置 SPEECH_APP_ID 和 SPEECH_ACCESS_TOKEN")
	}

	audioPath := flag.String("audio", "", "16kHz 单声道 PCM 文件路径")
	language := flag.String("lang", "", "语言代码，默认使用配置中的语言")
	pace := flag.Duration("pace", 200*time.Millisecond, "每个音频分片之间的间隔，0 表示尽快发送")
	stopAfter := flag.Duration("stop-after", 0, "提前结束录音的时间，0 表示读完文件")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	if *audioPath == "" {
		flag.Usage()
		log.Fatal("需要通过 -audio 指定音频文件路径")
	}

	speechCfg := cfg.Speech.Model()
	if *language != "" {
		speechCfg.ASRLanguage = *language
	}

	source := func(context.Context) (io.ReadCloser, error) {
		f, err := os.Open(*audioPath)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	recognizer := speech.NewRecognizer(speechCfg, source, speech.WithPace(*pace))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Printf("开始流式识别: audio=%s language=%s", *audioPath, speechCfg.ASRLanguage)
	started := time.Now()

	events, err := recognizer.Start(ctx)
	if err != nil {
		log.Fatalf("启动识别失败: %v", err)
	}

	if *stopAfter > 0 {
		time.AfterFunc(*stopAfter, func() {
			log.Printf("提前停止录音")
			_ = recognizer.Stop()
		})
	}

	var final string
	for ev := range events {
		switch {
		case ev.Err != nil:
			log.Fatalf("识别失败: %v", ev.Err)
		case ev.End:
			log.Printf("识别结束: text=%q elapsed=%s", final, time.Since(started).Round(time.Millisecond))
		default:
			final = ev.Transcript
			log.Printf("中间结果: %q", ev.Transcript)
		}
	}
}
