package config

// DefaultConfig returns the built-in configuration: sources and cache live
// in ./data, prices are never pruned unless asked for.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:    "data",
			DBName: "cache.db",
		},
		Prices: PricesConfig{
			File:         "market.prices",
			PruneMissing: false,
		},
	}
}
