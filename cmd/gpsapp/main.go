package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gpsapp/internal/buttons"
	"gpsapp/internal/config"
	"gpsapp/internal/engine"
	"gpsapp/internal/metrics"
	"gpsapp/internal/publish"
	"gpsapp/internal/udp"
	"gpsapp/internal/web"
)

func main() {
	var (
		configPath string
		summarize  string
		protocol   string
	)
	flag.StringVar(&configPath, "config", "./gpsapp.yaml", "Path to YAML config")
	flag.StringVar(&summarize, "summarize", "", "Print a summary of a byte capture and exit")
	flag.StringVar(&protocol, "protocol", "NMEA", "Protocol used to decode -summarize captures")
	flag.Parse()

	if summarize != "" {
		if err := printCaptureSummary(os.Stdout, summarize, protocol); err != nil {
			log.Fatalf("summarize failed: %v", err)
		}
		return
	}

	logs := web.NewLogBuffer(1000)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	live := web.NewBroadcaster()
	sinks := []engine.Sink{live}
	outputs := map[string]any{}

	if cfg.UDP.Dest != "" {
		b, err := udp.NewBroadcaster(cfg.UDP.Dest, cfg.UDP.Interval)
		if err != nil {
			log.Fatalf("udp broadcaster init failed: %v", err)
		}
		defer b.Close()
		sinks = append(sinks, b)
		outputs["udp"] = cfg.UDP.Dest
		log.Printf("udp dest=%s interval=%s", cfg.UDP.Dest, cfg.UDP.Interval)
	}
	if cfg.MQTT.Broker != "" {
		p, err := publish.Dial(publish.Config{Broker: cfg.MQTT.Broker, Topic: cfg.MQTT.Topic, ClientID: cfg.MQTT.ClientID})
		if err != nil {
			log.Fatalf("mqtt init failed: %v", err)
		}
		defer p.Close()
		sinks = append(sinks, p)
		outputs["mqtt"] = cfg.MQTT.Broker + " " + cfg.MQTT.Topic
	}

	status := web.NewStatus()
	rt, err := newLiveRuntime(ctx, cfg, configPath, status, sinks)
	if err != nil {
		log.Fatalf("engine start failed: %v", err)
	}
	defer rt.Close()

	if cfg.Buttons.Enable {
		bcfg := buttons.Config{Chip: cfg.Buttons.Chip, NextPin: cfg.Buttons.NextPin, PrevPin: cfg.Buttons.PrevPin}
		go func() {
			if err := buttons.Watch(ctx, bcfg, rt.Skip); err != nil && ctx.Err() == nil {
				log.Printf("buttons stopped: %v", err)
			}
		}()
		outputs["buttons"] = true
	}

	status.SetStatic("", "", "", outputs)

	reg := metrics.NewRegistry(rt)
	if err := metrics.RegisterThermal(reg, ""); err != nil {
		log.Printf("metrics: thermal gauge unavailable: %v", err)
	}

	log.Printf("gpsapp starting config=%s", configPath)

	if cfg.Web.Listen == "" {
		<-ctx.Done()
		log.Printf("gpsapp stopping")
		return
	}

	log.Printf("web listen=%s", cfg.Web.Listen)
	err = web.Serve(ctx, cfg.Web.Listen, web.Deps{
		Status:      status,
		Engine:      rt,
		Broadcaster: live,
		Logs:        logs,
		Settings:    web.SettingsStore{ConfigPath: configPath, Apply: rt.Apply},
		Metrics:     metrics.Handler(reg),
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("web server stopped: %v", err)
	}
	log.Printf("gpsapp stopping")
}
