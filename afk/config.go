package afk

import (
	_ "embed"
	"encoding/json"
)

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	NickPrefix          string `json:"NickPrefix"`
	MaxPingLogs         int    `json:"MaxPingLogs"`
	MaxLogMessageLength int    `json:"MaxLogMessageLength"`
	EmbedColor          int    `json:"EmbedColor"`
	Responses           struct {
		NowAFK      string `json:"NowAFK"`
		WelcomeBack string `json:"WelcomeBack"`
		NotAFK      string `json:"NotAFK"`
	} `json:"Responses"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}
