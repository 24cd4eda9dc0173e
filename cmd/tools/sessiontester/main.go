package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hopewhisperer/hope-whisperer/internal/audio"
	"github.com/hopewhisperer/hope-whisperer/internal/config"
	"github.com/hopewhisperer/hope-whisperer/internal/credential"
	model "github.com/hopewhisperer/hope-whisperer/internal/model/session"
	"github.com/hopewhisperer/hope-whisperer/internal/permission"
	"github.com/hopewhisperer/hope-whisperer/internal/service/convai"
	"github.com/hopewhisperer/hope-whisperer/internal/service/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	agentID := flag.String("agent", "", "ElevenLabs Agent ID")
	duration := flag.Duration("duration", 30*time.Second, "会话持续时间，到时自动结束")
	useAudio := flag.Bool("audio", false, "使用本机麦克风与扬声器 (默认静音设备)")
	flag.Parse()

	if strings.TrimSpace(*agentID) == "" {
		flag.Usage()
		log.Fatal("请通过 -agent 指定 Agent ID")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiKey := resolveAPIKey(ctx, cfg)

	var devices audio.Devices = audio.NullDevices{}
	var prober permission.Prober = audio.NullDevices{}
	if *useAudio {
		devices = audio.NewLocalDevices()
		prober = audio.MicProber{}
	}

	transport := convai.NewClient(convai.Config{
		APIBase:          cfg.Vendor.APIBase,
		WSBase:           cfg.Vendor.WSBase,
		InputSampleRate:  cfg.Audio.InputSampleRate,
		OutputSampleRate: cfg.Audio.OutputSampleRate,
		Connection:       convai.ConnectionOptions{HandshakeTimeout: cfg.Session.HandshakeTimeout},
	}, devices)
	adapter := session.NewAdapter(transport, permission.NewGate(prober))

	updates, unsubscribe := adapter.Subscribe()
	defer unsubscribe()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go adapter.Run(runCtx)

	log.Printf("开始会话测试: agent=%s signed=%t duration=%s", *agentID, apiKey != "", *duration)
	if err := adapter.Start(ctx, session.StartRequest{AgentID: *agentID, APIKey: apiKey}); err != nil {
		log.Fatalf("会话启动失败: %v", err)
	}

	timer := time.NewTimer(*duration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("收到中断信号，结束会话")
			endSession(adapter)
			return
		case <-timer.C:
			log.Println("测试时长已到，结束会话")
			endSession(adapter)
			return
		case u := <-updates:
			printUpdate(u)
			if u.Kind == session.UpdateStatus && u.Status == model.StatusDisconnected {
				log.Println("会话已断开")
				return
			}
		}
	}
}

// resolveAPIKey prefers ELEVENLABS_API_KEY and falls back to the stored
// credential. Empty means the public agent URL is used.
func resolveAPIKey(ctx context.Context, cfg *config.Config) string {
	if cfg.Vendor.APIKey != "" {
		return cfg.Vendor.APIKey
	}
	store, closeStore, err := credential.Open(ctx, cfg.Credential)
	if err != nil {
		log.Printf("[WARN] 无法打开凭证存储: %v", err)
		return ""
	}
	defer closeStore()
	key, _ := store.Load(ctx)
	return key
}

func printUpdate(u session.Update) {
	switch u.Kind {
	case session.UpdateStatus:
		log.Printf("状态: %s (session=%s)", u.Status, u.SessionID)
	case session.UpdateSpeaking:
		log.Printf("说话中: %t", u.Speaking)
	case session.UpdateMessage:
		log.Printf("[%s] %s", u.Message.Source, u.Message.Text)
	case session.UpdateMetadata:
		log.Printf("会话ID: %s", u.ConversationID)
	case session.UpdateError:
		if errors.Is(u.Err, context.Canceled) {
			return
		}
		log.Printf("会话错误: %v", u.Err)
	}
}

func endSession(adapter *session.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	adapter.End(ctx)
}
