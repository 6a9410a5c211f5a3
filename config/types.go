package config

// Storage selects the key-value backend holding ledger records.
type Storage struct {
	Backend string `toml:"Backend"`
	Path    string `toml:"Path"`
}

// Logging controls the structured log sink.
type Logging struct {
	Service    string `toml:"Service"`
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Journal points at the settlement history database. An empty DSN disables
// the journal.
type Journal struct {
	DSN string `toml:"DSN"`
}

// Pauses halts the lending module or individual lending actions such as
// "pay" or "originate".
type Pauses struct {
	Lending bool     `toml:"Lending"`
	Actions []string `toml:"Actions"`
}
