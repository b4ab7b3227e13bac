package timers

import (
	_ "embed"
	"encoding/json"
	"time"
)

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	MinSeconds   int    `json:"MinSeconds"`
	MaxSeconds   int    `json:"MaxSeconds"`
	MaxTimers    int    `json:"MaxTimers"`
	PollSeconds  int    `json:"PollSeconds"`
	GuildDelayMs int    `json:"GuildDelayMs"`
	ButtonLabel  string `json:"ButtonLabel"`
	EmbedColor   int    `json:"EmbedColor"`
	Responses    struct {
		TooMany  string `json:"TooMany"`
		NotFound string `json:"NotFound"`
		NotHost  string `json:"NotHost"`
		Joined   string `json:"Joined"`
		Left     string `json:"Left"`
	} `json:"Responses"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}

func (c Config) bounds() (time.Duration, time.Duration) {
	return time.Duration(c.MinSeconds) * time.Second, time.Duration(c.MaxSeconds) * time.Second
}
