package globalban

import (
	_ "embed"
	"encoding/json"
	"time"
)

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	ConfirmTimeout int    `json:"ConfirmTimeout"`
	DefaultReason  string `json:"DefaultReason"`
	AuditPrefix    string `json:"AuditPrefix"`
	LogsPerPage    int    `json:"LogsPerPage"`
	EmbedColor     int    `json:"EmbedColor"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}

func (c Config) confirmTimeout() time.Duration {
	if c.ConfirmTimeout <= 0 {
		return time.Minute
	}
	return time.Duration(c.ConfirmTimeout) * time.Second
}
