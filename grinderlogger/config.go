package grinderlogger

import (
	_ "embed"
	"encoding/json"
	"time"
)

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	PollMinutes  int `json:"PollMinutes"`
	GuildDelayMs int `json:"GuildDelayMs"`
	GraceHours   int `json:"GraceHours"`
	MaxTier      int `json:"MaxTier"`
	MaxDays      int `json:"MaxDays"`
	EmbedColor   int `json:"EmbedColor"`
	Responses    struct {
		Reminder   string `json:"Reminder"`
		NotGrinder string `json:"NotGrinder"`
		NoTier     string `json:"NoTier"`
	} `json:"Responses"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}

func (c Config) pollInterval() time.Duration {
	if c.PollMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.PollMinutes) * time.Minute
}

func (c Config) grace() time.Duration {
	return time.Duration(c.GraceHours) * time.Hour
}
