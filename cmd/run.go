package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/QianrenLi/stream-replay/internal/config"
	"github.com/QianrenLi/stream-replay/internal/control"
	"github.com/QianrenLi/stream-replay/internal/log"
	"github.com/QianrenLi/stream-replay/internal/macmon"
	"github.com/QianrenLi/stream-replay/internal/metrics"
	"github.com/QianrenLi/stream-replay/internal/reporter"
	"github.com/QianrenLi/stream-replay/internal/stream"
)

var runManifestFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the transmitter for the streams described in a manifest",
	Long: `Load a run manifest, start one worker per stream, the MAC queue
monitor, the UDP control daemon, and (if configured) the Prometheus
metrics server and statistics reporter. Runs until every stream's
duration window has elapsed, or until SIGINT/SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		runRunCommand()
	},
}

func init() {
	runCmd.Flags().StringVarP(&runManifestFile, "manifest", "m", "",
		"run manifest file (required)")
	runCmd.MarkFlagRequired("manifest")
}

func runRunCommand() {
	globalConfig, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load %s, using defaults: %v\n", configFile, err)
		globalConfig = &config.GlobalConfig{}
		globalConfig.Control.DefaultPort = 5566
	}
	log.Init(&globalConfig.Log)
	logger := log.GetLogger()

	data, err := os.ReadFile(runManifestFile)
	if err != nil {
		exitWithError(fmt.Sprintf("failed to read manifest %s", runManifestFile), err)
	}
	manifest, err := config.ParseManifest(data)
	if err != nil {
		exitWithError("invalid manifest", err)
	}

	devices := make([]string, 0, len(manifest.TxIPAddrs))
	for _, ip := range manifest.TxIPAddrs {
		dev, err := macmon.DeviceForIP(ip)
		if err != nil {
			exitWithError(fmt.Sprintf("failed to resolve device for %s", ip), err)
		}
		devices = append(devices, dev)
	}

	monitor := macmon.New(devices)
	monitorStop := make(chan struct{})
	go monitor.Run(monitorStop)
	defer close(monitorStop)

	manager, err := stream.NewManager(manifest, monitor, devices)
	if err != nil {
		logger.Warnf("some streams failed to start: %v", err)
	}
	defer manager.Close()

	ipcPort := globalConfig.Control.DefaultPort
	if manifest.IPCPort != nil {
		ipcPort = *manifest.IPCPort
	}
	var txIPAddr string
	if len(manifest.TxIPAddrs) > 0 {
		txIPAddr = manifest.TxIPAddrs[0]
	}

	daemon, err := control.New(txIPAddr, ipcPort, manager.StreamHandles(), monitor)
	if err != nil {
		exitWithError("failed to start control daemon", err)
	}
	defer daemon.Close()

	if globalConfig.Metrics.Enabled {
		srv := metrics.NewServer(globalConfig.Metrics.Listen, globalConfig.Metrics.Path)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := srv.Start(ctx); err != nil {
			logger.Warnf("metrics server failed to start: %v", err)
		} else {
			defer srv.Stop(context.Background())
		}
	}

	reportStop := make(chan struct{})
	if globalConfig.Reporter.Type != "" {
		rep, err := reporter.New(toReporterConfig(globalConfig.Reporter))
		if err != nil {
			logger.Warnf("reporter failed to start: %v", err)
		} else {
			defer rep.Close()
			go reporter.Run(globalConfig.Reporter.Type, rep, 5*time.Second, func() control.Statistics {
				return snapshotStatistics(manager, monitor)
			}, reportStop)
			defer close(reportStop)
		}
	}

	runDuration := manifestDuration(manifest)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		manager.Run(manifest.Streams)
		close(done)
	}()
	go daemon.RunFor(runDuration + time.Second)

	select {
	case <-done:
		logger.Infof("all streams finished")
	case sig := <-sigChan:
		logger.Infof("received %s, shutting down", sig)
	}
}

// manifestDuration is the latest stream stop time across the manifest.
func manifestDuration(m *config.Manifest) time.Duration {
	var max float64
	for _, s := range m.Streams {
		if s.Duration[1] > max {
			max = s.Duration[1]
		}
	}
	return time.Duration(max * float64(time.Second))
}

// toReporterConfig converts the config package's wire/YAML view of the
// reporter settings into the reporter package's own Config, avoiding an
// import cycle (config -> reporter -> control -> config).
func toReporterConfig(c config.ReporterConfig) reporter.Config {
	return reporter.Config{
		Type:    c.Type,
		Console: reporter.ConsoleConfig{JSON: c.Console.JSON},
		Kafka: reporter.KafkaConfig{
			Brokers:      c.Kafka.Brokers,
			Topic:        c.Kafka.Topic,
			BatchSize:    c.Kafka.BatchSize,
			BatchTimeout: time.Duration(c.Kafka.BatchTimeout) * time.Millisecond,
			Compression:  c.Kafka.Compression,
		},
	}
}

func snapshotStatistics(manager *stream.Manager, monitor *macmon.Monitor) control.Statistics {
	flowStat := make(map[string]control.FlowStatistics)
	for name, handle := range manager.StreamHandles() {
		if stat, ok := handle.Statistics(); ok {
			flowStat[name] = stat
		}
	}
	return control.Statistics{FlowStat: flowStat, DeviceStat: monitor.Load()}
}
