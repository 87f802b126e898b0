package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Progress is emitted after every processed file and once at run completion
type Progress struct {
	LoggerIDs       []string      `json:"logger_ids"`
	LoggerIndex     int           `json:"logger_index"` // 0-based index of the current logger
	FileIndex       int           `json:"file_index"`   // 0-based index within the current logger
	Filename        string        `json:"filename"`
	FilesInLogger   int           `json:"files_in_logger"`
	CumulativeFiles int           `json:"cumulative_files"` // files processed so far across all loggers
	TotalFiles      int           `json:"total_files"`
	Elapsed         time.Duration `json:"elapsed"`
	Done            bool          `json:"done"` // true only for the final completion event
}

// ProgressFunc receives progress events from the orchestrator. Callbacks run
// on the worker goroutine and must return quickly.
type ProgressFunc func(Progress)

// LogProgress logs progress events, one line per file
func LogProgress(p Progress) {
	if p.Done {
		log.Printf("Processing complete: %d files in %s", p.TotalFiles, p.Elapsed.Round(time.Millisecond))
		return
	}
	if DebugMode {
		log.Printf("Logger %d/%d file %d/%d (%s) - %d/%d total, elapsed %s",
			p.LoggerIndex+1, len(p.LoggerIDs), p.FileIndex+1, p.FilesInLogger,
			p.Filename, p.CumulativeFiles, p.TotalFiles, p.Elapsed.Round(time.Millisecond))
	}
}

// MQTTProgressPublisher publishes progress events as JSON to an MQTT topic,
// so dashboards can follow long-running screening batches.
type MQTTProgressPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTProgressPublisher connects to the broker configured in MQTTConfig
func NewMQTTProgressPublisher(cfg MQTTConfig) (*MQTTProgressPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	log.Printf("Connected to MQTT broker %s, publishing progress to %s", cfg.Broker, cfg.Topic)
	return &MQTTProgressPublisher{client: client, topic: cfg.Topic}, nil
}

// Publish sends one progress event. Publish failures are logged, never fatal
// to the run.
func (m *MQTTProgressPublisher) Publish(p Progress) {
	payload, err := json.Marshal(p)
	if err != nil {
		log.Printf("Error marshaling progress event: %v", err)
		return
	}
	token := m.client.Publish(m.topic, 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("Error publishing progress to MQTT: %v", err)
		}
	}()
}

// Close disconnects from the broker
func (m *MQTTProgressPublisher) Close() {
	m.client.Disconnect(250)
}
