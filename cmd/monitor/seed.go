package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/config"
	"github.com/SebastienCoste/KafkaMonitor-sub000/internal/seeder"
)

var (
	seedFlows      int
	seedInterval   time.Duration
	seedDropRatio  float64
	seedTopicsFlag []string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish synthetic correlated record flows for demos and load tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed()
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedFlows, "flows", 100, "number of correlated flows to publish")
	seedCmd.Flags().DurationVar(&seedInterval, "interval", 50*time.Millisecond, "delay between flows")
	seedCmd.Flags().Float64Var(&seedDropRatio, "drop-header-ratio", 0.05, "fraction of records published without the correlation header")
	seedCmd.Flags().StringSliceVar(&seedTopicsFlag, "topics", nil, "topic path flows walk (default: a built-in order flow)")
}

func runSeed() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	conn, err := nats.Connect(cfg.Source.NATSURL, nats.Name("kafkamon-seeder"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer conn.Drain()

	gen := seeder.NewGenerator(seedTopicsFlag, cfg.Monitor.CorrelationHeader, seedDropRatio)

	published := 0
	for i := 0; i < seedFlows; i++ {
		for _, rec := range gen.Flow(time.Now()) {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record: %w", err)
			}
			if err := conn.Publish(cfg.Source.Subject, data); err != nil {
				return fmt.Errorf("publish record: %w", err)
			}
			published++
		}
		time.Sleep(seedInterval)
	}

	fmt.Printf("published %d records across %d flows to %s\n", published, seedFlows, cfg.Source.Subject)
	return nil
}
