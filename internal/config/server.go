package config

import (
	"fmt"
	"time"
)

// Server is the configuration of the API and alerting binary.
type Server struct {
	Base
	HTTPAddr string

	// StoreBackend selects which store the monitor reads from: sqlite or dynamodb.
	StoreBackend    string
	RefreshInterval time.Duration
	Lookback        time.Duration

	// Notifiers lists the enabled alert channels: email, mqtt, log.
	Notifiers []string
	Email     Email

	MQTT     MQTT
	SQLite   SQLite
	DynamoDB DynamoDB
	Tuning   Tuning
}

// Email holds SMTP delivery settings for alert emails.
type Email struct {
	Host      string
	Port      int
	Sender    string
	Password  string
	Recipient string
}

func LoadServerFromEnv() (Server, error) {
	base, err := loadBase()
	if err != nil {
		return Server{}, err
	}

	backend := envString("STORE_BACKEND", "sqlite")
	switch backend {
	case "sqlite", "dynamodb":
	default:
		return Server{}, fmt.Errorf("invalid STORE_BACKEND %q (allowed: sqlite, dynamodb)", backend)
	}

	refresh, err := envDuration("REFRESH_INTERVAL", 60*time.Second)
	if err != nil {
		return Server{}, err
	}
	if refresh <= 0 {
		return Server{}, fmt.Errorf("REFRESH_INTERVAL must be positive, got %v", refresh)
	}
	lookback, err := envDuration("LOOKBACK", 24*time.Hour)
	if err != nil {
		return Server{}, err
	}
	if lookback <= 0 {
		return Server{}, fmt.Errorf("LOOKBACK must be positive, got %v", lookback)
	}

	notifiers := envList("NOTIFIERS", "log")
	for _, n := range notifiers {
		switch n {
		case "email", "mqtt", "log":
		default:
			return Server{}, fmt.Errorf("invalid NOTIFIERS entry %q (allowed: email, mqtt, log)", n)
		}
	}

	smtpPort, err := envInt("SMTP_PORT", 465)
	if err != nil {
		return Server{}, err
	}

	mqttCfg, err := loadMQTT("ethylene-server")
	if err != nil {
		return Server{}, err
	}
	sqliteCfg, err := loadSQLite()
	if err != nil {
		return Server{}, err
	}
	dynamoCfg := loadDynamoDB()
	if backend == "dynamodb" && dynamoCfg.Table == "" {
		return Server{}, fmt.Errorf("DYNAMODB_TABLE is required when STORE_BACKEND=dynamodb")
	}

	tuning, err := LoadTuning()
	if err != nil {
		return Server{}, err
	}

	return Server{
		Base:            base,
		HTTPAddr:        envString("HTTP_ADDR", ":8080"),
		StoreBackend:    backend,
		RefreshInterval: refresh,
		Lookback:        lookback,
		Notifiers:       notifiers,
		Email: Email{
			Host:      envString("SMTP_HOST", "smtp.gmail.com"),
			Port:      smtpPort,
			Sender:    envString("SENDER_EMAIL", ""),
			Password:  envString("SENDER_PASSWORD", ""),
			Recipient: envString("RECIPIENT_EMAIL", ""),
		},
		MQTT:     mqttCfg,
		SQLite:   sqliteCfg,
		DynamoDB: dynamoCfg,
		Tuning:   tuning,
	}, nil
}
