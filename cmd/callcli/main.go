// Command callcli runs a live companion call from the terminal.
// It wires the full call stack: quota store, agent catalog, ElevenLabs
// transport, and optionally a local webcam preview.
//
// Usage:
//
//	ELEVENLABS_API_KEY=sk_... go run ./cmd/callcli/ -character luna
//	ELEVENLABS_API_KEY=sk_... go run ./cmd/callcli/ -agent <agent-id>
//
// Environment:
//
//	ELEVENLABS_API_KEY   required, transport credentials
//	SUPABASE_URL/KEY     optional, character catalog + quota store
//	CATALOG_URL          optional, REST character catalog
//	REDIS_ADDR           optional, Redis quota store
//
// Interactive commands: v (toggle voice), c (toggle camera), m (toggle
// mute), q (quit); any other line is sent as a text message.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emberchat/callkit/internal/config"
	"github.com/emberchat/callkit/internal/log"
	"github.com/emberchat/callkit/pkg/agent"
	"github.com/emberchat/callkit/pkg/call"
	"github.com/emberchat/callkit/pkg/preview"
	"github.com/emberchat/callkit/pkg/quota"
	"github.com/emberchat/callkit/pkg/transport"
)

var (
	characterID = flag.String("character", "", "Character ID to call")
	agentID     = flag.String("agent", "", "Voice agent ID (bypasses the catalog)")
	userID      = flag.String("user", "callcli", "User ID for quota accounting")
	tier        = flag.String("tier", "free", "Subscription tier: free or privileged")
	camera      = flag.Bool("camera", false, "Enable the local webcam preview")
	cameraID    = flag.Int("camera-id", 0, "Webcam device ID")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	apiKey := config.ElevenLabsAPIKey()
	if *characterID == "" && *agentID == "" {
		fmt.Println("❌ -character or -agent required")
		os.Exit(1)
	}

	driver, err := transport.NewElevenLabs(transport.WithAPIKey(apiKey))
	if err != nil {
		fmt.Printf("❌ Failed to create transport: %v\n", err)
		os.Exit(1)
	}

	catalog, characterKey := buildCatalog()
	store, err := buildStore()
	if err != nil {
		fmt.Printf("❌ Failed to create quota store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	meter := quota.NewMeter(quota.MeterConfig{
		Store:  store,
		UserID: *userID,
		Tier:   quota.Tier(*tier),
		Logger: log.L(),
	})

	var previewManager *preview.Manager
	if *camera {
		previewManager = preview.NewManager(
			&preview.WebcamCapture{DeviceID: *cameraID},
			func(class preview.AlertClass, message string) {
				fmt.Printf("⚠️  %s: %s\n", class, message)
			},
			log.L(),
		)
	}

	controller := call.NewController(call.Config{
		Preview:     previewManager,
		Driver:      driver,
		Resolver:    agent.NewResolver(catalog, log.L()),
		Meter:       meter,
		CharacterID: characterKey,
		UserID:      *userID,
		OnQuotaExhausted: func() {
			fmt.Println("⏳ Call budget exhausted")
		},
		OnNotice: func(message string) {
			fmt.Printf("⚠️  %s\n", message)
		},
		Logger: log.L(),
	})
	defer controller.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Ending call")
		controller.Close()
		cancel()
		os.Exit(0)
	}()

	fmt.Printf("📞 Starting voice call (user=%s tier=%s)\n", *userID, *tier)
	if err := controller.ToggleVoice(ctx); err != nil {
		fmt.Printf("❌ Call failed to start: %v\n", err)
		os.Exit(1)
	}

	go printStatus(controller)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "q":
			controller.Close()
			return
		case "v":
			if err := controller.ToggleVoice(ctx); err != nil {
				fmt.Printf("⚠️  %v\n", err)
			}
		case "c":
			if err := controller.ToggleCamera(ctx); err != nil {
				fmt.Printf("⚠️  %v\n", err)
			}
		case "m":
			muted := !controller.Session().State().IsMuted
			controller.Session().SetMicMuted(muted)
			fmt.Printf("🎙️  Muted: %v\n", muted)
		default:
			if err := controller.Session().SendText(line); err != nil {
				fmt.Printf("⚠️  %v\n", err)
			}
		}
	}
}

// buildCatalog picks the character catalog: a fixed entry for -agent,
// Supabase when configured, otherwise a REST catalog.
func buildCatalog() (agent.Catalog, string) {
	if *agentID != "" {
		return fixedCatalog{agent.Character{ID: "direct", VoiceAgentID: *agentID}}, "direct"
	}

	if url := config.SupabaseURL(); url != "" {
		catalog, err := agent.NewSupabaseCatalog(url, config.SupabaseKey())
		if err != nil {
			fmt.Printf("❌ Failed to create catalog: %v\n", err)
			os.Exit(1)
		}
		return catalog, *characterID
	}

	baseURL := config.CatalogURL()
	if baseURL == "" {
		fmt.Println("❌ SUPABASE_URL, CATALOG_URL, or -agent required to resolve the character")
		os.Exit(1)
	}
	return agent.NewHTTPCatalog(baseURL, config.CatalogAPIKey()), *characterID
}

// buildStore picks the quota store from the environment, falling back
// to in-memory.
func buildStore() (quota.Store, error) {
	if url := config.SupabaseURL(); url != "" {
		return quota.NewStore(quota.StoreTypeSupabase,
			quota.WithSupabase(url, config.SupabaseKey()))
	}
	if addr := config.RedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		return quota.NewStore(quota.StoreTypeRedis,
			quota.WithRedisClient(client),
			quota.WithRedisTTL(90*24*time.Hour))
	}
	return quota.NewStore(quota.StoreTypeMemory)
}

// printStatus echoes call progress once per second.
func printStatus(controller *call.Controller) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastStatus transport.Status
	for range ticker.C {
		snap := controller.Snapshot()
		if snap.Transport.Status != lastStatus {
			fmt.Printf("🔌 %s\n", snap.Transport.Status)
			lastStatus = snap.Transport.Status
		}
		if snap.Transport.Status == transport.StatusConnected {
			fmt.Printf("\r⏱️  %ds elapsed, %ds budget left, volume %.2f ",
				snap.Transport.CallDuration, snap.RemainingSeconds, snap.Transport.AgentVolume)
		}
	}
}

// fixedCatalog serves one hard-coded character, for -agent runs.
type fixedCatalog struct {
	character agent.Character
}

func (c fixedCatalog) Character(ctx context.Context, id string) (*agent.Character, error) {
	return &c.character, nil
}
