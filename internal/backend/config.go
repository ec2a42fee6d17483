package backend

import (
	"errors"
	"fmt"
	"time"

	"remanejo/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	return Config{
		SQLiteDBPath:        appConfig.SQLiteDBPath,
		AMQPURL:             appConfig.AMQPURL,
		AMQPExchange:        appConfig.AMQPExchange,
		AMQPQueue:           appConfig.AMQPQueue,
		AMQPEventsQueue:     appConfig.AMQPEventsQueue,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
		CacheSize:           appConfig.CacheSize,
		CacheTTL:            appConfig.CacheTTL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("invalid cache size %d", c.CacheSize)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("invalid cache TTL %v", c.CacheTTL)
	}
	return nil
}

func (c Config) cacheSize() int {
	if c.CacheSize == 0 {
		return 64
	}
	return c.CacheSize
}

func (c Config) cacheTTL() time.Duration {
	if c.CacheTTL == 0 {
		return time.Hour
	}
	return c.CacheTTL
}
