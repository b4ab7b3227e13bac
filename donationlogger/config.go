package donationlogger

import (
	_ "embed"
	"encoding/json"
)

//go:embed default_config.json
var DefaultConfigStr string

type Config struct {
	Alias           string `json:"Alias"`
	ConfirmTimeout  int    `json:"ConfirmTimeout"`
	LeaderboardSize int    `json:"LeaderboardSize"`
	MaxBanks        int    `json:"MaxBanks"`
	EmbedColor      int    `json:"EmbedColor"`
	Responses       struct {
		BankNotFound string `json:"BankNotFound"`
		NotManager   string `json:"NotManager"`
		Cancelled    string `json:"Cancelled"`
	} `json:"Responses"`
}

func DefaultConfig() Config {
	var config Config

	_ = json.Unmarshal([]byte(DefaultConfigStr), &config)

	return config
}
