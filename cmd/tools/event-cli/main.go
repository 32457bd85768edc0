package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/annel0/tileworld/internal/api"
	"github.com/annel0/tileworld/internal/eventbus"
)

const (
	defaultNATS   = "nats://127.0.0.1:4222"
	defaultHealth = "localhost:9090"
	timeFormat    = "15:04:05"
)

func main() {
	var (
		command    = flag.String("cmd", "tail", "Command: tail, health, types")
		natsURL    = flag.String("nats", defaultNATS, "NATS server URL")
		stream     = flag.String("stream", "WORLD_EVENTS", "JetStream stream name")
		healthAddr = flag.String("health", defaultHealth, "gRPC health address")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Event sources filter (comma-separated, e.g. shard-0@node-1)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 - follow until Ctrl+C)")
		timeout    = flag.Duration("timeout", 5*time.Second, "Health check timeout")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *command {
	case "tail":
		err := tailEvents(ctx, &TailOptions{
			URL:    *natsURL,
			Stream: *stream,
			Filter: eventbus.Filter{
				Types:   parseStringList(*eventTypes),
				Sources: parseStringList(*sources),
			},
			Limit: *limit,
		})
		if err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "health":
		if err := checkHealth(ctx, *healthAddr, *timeout); err != nil {
			log.Fatalf("❌ Health check failed: %v", err)
		}

	case "types":
		showTypes()

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, health, types")
		os.Exit(1)
	}
}

type TailOptions struct {
	URL    string
	Stream string
	Filter eventbus.Filter
	Limit  int
}

// tailEvents выводит события мира из JetStream по мере поступления
func tailEvents(ctx context.Context, opts *TailOptions) error {
	bus, err := eventbus.NewJetStreamBus(opts.URL, opts.Stream, 0)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("🎬 Tailing %s on %s (limit: %d)\n", opts.Stream, opts.URL, opts.Limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Subscribe(ctx, opts.Filter, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total events: %d\n", count)
			return nil
		case ev := <-events:
			printEvent(ev)
			count++
			if opts.Limit > 0 && count >= opts.Limit {
				fmt.Printf("\n📊 Total events: %d\n", count)
				return nil
			}
		}
	}
}

// checkHealth опрашивает gRPC health узла и сервиса шардов
func checkHealth(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	healthy := true
	for _, service := range []string{"", api.ShardService} {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return fmt.Errorf("check %q: %w", service, err)
		}
		name := service
		if name == "" {
			name = "node"
		}
		fmt.Printf("%-18s %s\n", name, resp.GetStatus())
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			healthy = false
		}
	}
	if !healthy {
		return fmt.Errorf("%s is not serving", addr)
	}
	return nil
}

// showTypes выводит типы событий, которые публикуют шарды
func showTypes() {
	fmt.Println("📋 Available event types")
	for _, t := range []string{
		eventbus.TypeWorldLoaded,
		eventbus.TypeWorldSaved,
		eventbus.TypeWorldEvicted,
		eventbus.TypeLockApplied,
	} {
		fmt.Printf("  %s\n", t)
	}
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n",
		ev.Timestamp.Local().Format(timeFormat),
		ev.Source,
		ev.EventType,
		ev.ID)

	fields, err := eventbus.DecodePayload(ev.Payload)
	if err != nil {
		fmt.Printf("  payload: %v\n", err)
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, fields[k])
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
