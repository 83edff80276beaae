package log

type AppenderConfig struct {
	Type    string                 `yaml:"type" mapstructure:"type"`
	Level   string                 `yaml:"level,omitempty" mapstructure:"level"`
	Options map[string]interface{} `yaml:"options,omitempty" mapstructure:"options"`
}

type FormatterConfig struct {
	EnableColors   bool `yaml:"enable_colors,omitempty" mapstructure:"enable_colors"`
	FullTimestamp  bool `yaml:"full_timestamp,omitempty" mapstructure:"full_timestamp"`
	DisableSorting bool `yaml:"disable_sorting,omitempty" mapstructure:"disable_sorting"`
}
