package config

// Options is the optional YAML file passed with --config. Debounce timing is
// deliberately absent.
type Options struct {
	LogLevel string            `koanf:"log_level"`
	Env      map[string]string `koanf:"env"`
	Dotenv   []string          `koanf:"dotenv"`
}

func (o *Options) SetDefaults() {
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	if o.Env == nil {
		o.Env = make(map[string]string)
	}
	if o.Dotenv == nil {
		o.Dotenv = make([]string, 0)
	}
}
