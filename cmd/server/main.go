package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"tankarena/internal/api"
	"tankarena/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  TANK ARENA - GO ENGINE")
	log.Println("🎮 ================================")

	appConfig := config.Load()
	api.SetAllowedOrigins(appConfig.Server.CORSOrigins)

	log.Printf("🎮 Config: %d tick/s, %d-char room codes, %ds reconnect grace",
		appConfig.Engine.TickRate, appConfig.Room.CodeLength, int(appConfig.Room.ReconnectTimeout.Seconds()))
	log.Printf("🛡️ Resource limits: %d max rooms, %d max connections, %d/IP",
		appConfig.Room.MaxConcurrentRoom, appConfig.Limits.MaxWSConnTotal, appConfig.Limits.MaxWSConnPerIP)

	debugCfg := api.DefaultObservabilityConfig()
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	eventLogPath := getEnvWithDefault("EVENT_LOG_PATH", "")
	if eventLogPath != "" {
		log.Printf("📝 Event log: %s (per room)", eventLogPath)
	}

	stageDescriptor := getEnvWithDefault("STAGE_DESCRIPTOR", "")

	server := api.NewServer(appConfig, stageDescriptor, eventLogPath)

	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		log.Printf("🌐 API server on http://localhost%s", addr)
		log.Printf("🎮 WebSocket endpoint: ws://localhost%s/ws", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	server.Stop()
	log.Println("👋 Goodbye!")
}

func getEnvWithDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
