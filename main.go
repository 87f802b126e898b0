package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Global debug flag
var DebugMode bool

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()
	DebugMode = *debug

	config, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := os.MkdirAll(config.Campaign.OutputPath, 0o755); err != nil {
		log.Fatalf("Error creating output path: %v", err)
	}

	var metrics *Metrics
	if config.Prometheus.Enabled {
		metrics = NewMetrics()
		ServeMetrics(config.Prometheus.Listen)
	}

	progress := ProgressFunc(LogProgress)
	if config.MQTT.Enabled {
		publisher, err := NewMQTTProgressPublisher(config.MQTT)
		if err != nil {
			log.Printf("Warning: MQTT progress publishing disabled: %v", err)
		} else {
			defer publisher.Close()
			progress = func(p Progress) {
				LogProgress(p)
				publisher.Publish(p)
			}
		}
	}

	log.Printf("Starting screening run: project %s (%s), campaign %s, %d loggers",
		config.Campaign.ProjectNumber, config.Campaign.ProjectName,
		config.Campaign.CampaignName, len(config.Loggers))

	orch := NewOrchestrator(config, metrics, progress)

	// The run happens on a worker goroutine; the main goroutine waits and
	// turns the first interrupt into a cooperative cancellation request,
	// honoured at the next file boundary.
	done := make(chan struct{})
	var summary *RunSummary
	var runErr error
	go func() {
		defer close(done)
		summary, runErr = orch.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
	case sig := <-sigCh:
		log.Printf("Received %v, cancelling at next file boundary...", sig)
		orch.Cancel()
		<-done
	}

	if runErr != nil {
		log.Fatalf("Run failed: %v", runErr)
	}

	for _, r := range summary.Results {
		for i, ch := range r.Channels {
			if i < len(r.Completeness) {
				log.Printf("Logger %s: channel %s data completeness %.1f%%", r.ID, ch, r.Completeness[i])
			}
		}
	}
	if summary.Cancelled {
		log.Printf("Run cancelled: %d loggers finalized, %d files processed", len(summary.Results), summary.TotalFiles)
	}
	log.Printf("Wrote %d output files, screening report at %s", len(summary.Manifest), summary.ReportPath)
	log.Printf("Total elapsed: %s", summary.Elapsed.Round(time.Millisecond))
	logRunStats()
}
