package reconcilespeciesnames

import "time"

type Config struct {
	Timeout        time.Duration
	MaxNames       int
	PreviewSize    int
	ScoreThreshold float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Minute,
	}
}
