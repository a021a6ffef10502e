package config

import (
	"fmt"
	"time"
)

// Gateway is the configuration of the ingest binary.
type Gateway struct {
	Base

	SerialPort        string
	SerialBaud        int
	SerialReadTimeout time.Duration
	SerialSettle      time.Duration

	// StoreBackend selects where readings are appended: mqtt, sqlite or dynamodb.
	StoreBackend string
	MetricsAddr  string

	MQTT     MQTT
	SQLite   SQLite
	DynamoDB DynamoDB
	Tuning   Tuning
}

// MQTT holds broker connection settings.
type MQTT struct {
	Broker   string
	Port     int
	ClientID string
	Username string
	Password string
	// Topic is the subscription filter used by the server.
	Topic string
}

// SQLite holds the database settings of the reading store.
type SQLite struct {
	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool
}

// DynamoDB holds the settings of the remote reading table.
type DynamoDB struct {
	Table    string
	Region   string
	Endpoint string
}

func LoadGatewayFromEnv() (Gateway, error) {
	base, err := loadBase()
	if err != nil {
		return Gateway{}, err
	}

	serialBaud, err := envInt("SERIAL_BAUD", 9600)
	if err != nil {
		return Gateway{}, err
	}
	if serialBaud <= 0 {
		return Gateway{}, fmt.Errorf("SERIAL_BAUD must be positive, got %d", serialBaud)
	}
	readTimeout, err := envDuration("SERIAL_READ_TIMEOUT", time.Second)
	if err != nil {
		return Gateway{}, err
	}
	if readTimeout <= 0 {
		return Gateway{}, fmt.Errorf("SERIAL_READ_TIMEOUT must be positive, got %v", readTimeout)
	}
	settle, err := envDuration("SERIAL_SETTLE", 2*time.Second)
	if err != nil {
		return Gateway{}, err
	}

	backend := envString("STORE_BACKEND", "mqtt")
	switch backend {
	case "mqtt", "sqlite", "dynamodb":
	default:
		return Gateway{}, fmt.Errorf("invalid STORE_BACKEND %q (allowed: mqtt, sqlite, dynamodb)", backend)
	}

	mqttCfg, err := loadMQTT("ethylene-gateway")
	if err != nil {
		return Gateway{}, err
	}
	sqliteCfg, err := loadSQLite()
	if err != nil {
		return Gateway{}, err
	}
	dynamoCfg := loadDynamoDB()
	if backend == "dynamodb" && dynamoCfg.Table == "" {
		return Gateway{}, fmt.Errorf("DYNAMODB_TABLE is required when STORE_BACKEND=dynamodb")
	}

	tuning, err := LoadTuning()
	if err != nil {
		return Gateway{}, err
	}

	return Gateway{
		Base:              base,
		SerialPort:        envString("SERIAL_PORT", "/dev/ttyACM0"),
		SerialBaud:        serialBaud,
		SerialReadTimeout: readTimeout,
		SerialSettle:      settle,
		StoreBackend:      backend,
		MetricsAddr:       envString("METRICS_ADDR", ""),
		MQTT:              mqttCfg,
		SQLite:            sqliteCfg,
		DynamoDB:          dynamoCfg,
		Tuning:            tuning,
	}, nil
}

func loadMQTT(defaultClientID string) (MQTT, error) {
	port, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return MQTT{}, err
	}
	if port <= 0 || port > 65535 {
		return MQTT{}, fmt.Errorf("MQTT_PORT out of range: %d", port)
	}
	return MQTT{
		Broker:   envString("MQTT_BROKER", "localhost"),
		Port:     port,
		ClientID: envString("MQTT_CLIENT_ID", defaultClientID),
		Username: envString("MQTT_USERNAME", ""),
		Password: envString("MQTT_PASSWORD", ""),
		Topic:    envString("MQTT_TOPIC", "stations/+/readings"),
	}, nil
}

func loadSQLite() (SQLite, error) {
	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return SQLite{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return SQLite{}, err
	}
	connMaxLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return SQLite{}, err
	}
	logSQL, err := envBool("DB_LOG_SQL", false)
	if err != nil {
		return SQLite{}, err
	}
	return SQLite{
		Driver:          envString("DB_DRIVER", "sqlite3"),
		DSN:             envString("DB_DSN", ""),
		Path:            envString("SQLITE_PATH", "data/ethylene.db"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		LogSQL:          logSQL,
	}, nil
}

func loadDynamoDB() DynamoDB {
	return DynamoDB{
		Table:    envString("DYNAMODB_TABLE", ""),
		Region:   envString("AWS_REGION", "us-east-1"),
		Endpoint: envString("DYNAMODB_ENDPOINT", ""),
	}
}
