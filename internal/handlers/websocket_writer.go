package handlers

import (
	"strings"
	"sync"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor/levels"
	"github.com/ternarybob/arbor/models"

	"github.com/ternarybob/scribo/internal/common"
)

const (
	// Buffer size for the log batch channel feeding the bridge
	defaultLogChannelBuffer = 10
)

// defaultExcludePatterns keeps connection chatter and request logs out of
// the UI log panel; broadcasting them would echo forever.
var defaultExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"HTTP response",
	"Publishing event",
}

// WebSocketLogBridge consumes arbor log batches from a channel and
// broadcasts filtered entries to WebSocket clients. Attach it with
// logger.SetChannel after construction.
type WebSocketLogBridge struct {
	handler         *WebSocketHandler
	channel         chan []models.LogEvent
	minLevel        levels.LogLevel
	excludePatterns []string
	done            chan struct{}
	closeOnce       sync.Once
}

// NewWebSocketLogBridge creates the bridge and starts its consumer loop.
func NewWebSocketLogBridge(handler *WebSocketHandler, wsConfig *common.WebSocketConfig) *WebSocketLogBridge {
	minLevel := levels.InfoLevel
	excludePatterns := defaultExcludePatterns

	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.MinLevel)
		if len(wsConfig.ExcludePatterns) > 0 {
			excludePatterns = wsConfig.ExcludePatterns
		}
	}

	b := &WebSocketLogBridge{
		handler:         handler,
		channel:         make(chan []models.LogEvent, defaultLogChannelBuffer),
		minLevel:        minLevel,
		excludePatterns: excludePatterns,
		done:            make(chan struct{}),
	}

	go b.consume()
	return b
}

// Channel returns the channel arbor should deliver log batches to
func (b *WebSocketLogBridge) Channel() chan []models.LogEvent {
	return b.channel
}

func (b *WebSocketLogBridge) consume() {
	for {
		select {
		case batch := <-b.channel:
			for _, entry := range batch {
				b.broadcastEntry(entry)
			}
		case <-b.done:
			// Drain what is already queued, then stop
			for {
				select {
				case batch := <-b.channel:
					for _, entry := range batch {
						b.broadcastEntry(entry)
					}
				default:
					return
				}
			}
		}
	}
}

func (b *WebSocketLogBridge) broadcastEntry(entry models.LogEvent) {
	arborLevel := plogToArborLevel(entry.Level)
	if arborLevel < b.minLevel {
		return
	}

	for _, pattern := range b.excludePatterns {
		if strings.Contains(entry.Message, pattern) {
			return
		}
	}

	b.handler.BroadcastLog(LogEntry{
		Timestamp: entry.Timestamp.Format("15:04:05"),
		Level:     mapLevel(arborLevel),
		Message:   entry.Message,
	})
}

// Close stops the consumer loop after draining queued batches
func (b *WebSocketLogBridge) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	return nil
}

// plogToArborLevel converts phuslu/log.Level to arbor levels.LogLevel
func plogToArborLevel(level plog.Level) levels.LogLevel {
	switch level {
	case plog.ErrorLevel:
		return levels.ErrorLevel
	case plog.WarnLevel:
		return levels.WarnLevel
	case plog.InfoLevel:
		return levels.InfoLevel
	case plog.DebugLevel:
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// parseLogLevel converts string log level to arbor levels.LogLevel
func parseLogLevel(level string) levels.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return levels.ErrorLevel
	case "warn", "warning":
		return levels.WarnLevel
	case "info":
		return levels.InfoLevel
	case "debug":
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// mapLevel maps arbor log levels to UI strings
func mapLevel(level levels.LogLevel) string {
	switch level {
	case levels.ErrorLevel:
		return "error"
	case levels.WarnLevel:
		return "warn"
	case levels.InfoLevel:
		return "info"
	case levels.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
