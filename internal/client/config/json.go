package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/aturbins/hushwire/internal/flagx"
	"github.com/aturbins/hushwire/internal/timex"
)

// JsonConfig is the JSON-file counterpart of Config, using timex.Duration so
// intervals parse from both "10s" strings and integer nanoseconds.
type JsonConfig struct {
	ServerAddr     string         `json:"server_addr"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into cfg. No file means no overlay; an unreadable or
// invalid file panics.
func parseJson(cfg *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	cfg.ServerAddr = c.ServerAddr
	cfg.RequestTimeout = time.Duration(c.RequestTimeout.Duration)
}
