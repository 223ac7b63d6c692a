package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Logger struct {
	Level string `yaml:"level"`
}

type Global struct {
	Logger Logger `yaml:"logger"`
}

// Duration parses yaml scalars like "30s" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

type Sync struct {
	BaseURL  string   `yaml:"base_url"`
	Language string   `yaml:"language"`
	Page     int      `yaml:"page"`
	Timeout  Duration `yaml:"timeout"`
	Output   string   `yaml:"output"`
}

type S3 struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Prefix         string `yaml:"prefix"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type Mirror struct {
	Type string `yaml:"type"`
	S3   S3     `yaml:"s3"`
}

type Config struct {
	Global Global  `yaml:"global"`
	Sync   Sync    `yaml:"sync"`
	Mirror *Mirror `yaml:"mirror"`
}

func Default() *Config {
	return &Config{
		Sync: Sync{
			BaseURL:  "https://api.themoviedb.org/3",
			Language: "zh-CN",
			Page:     1,
			Timeout:  Duration(30 * time.Second),
			Output:   "data",
		},
	}
}

// NewFromFile loads a config file on top of the defaults; fields absent from
// the file keep their default values.
func NewFromFile(fpath string) (*Config, error) {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}

	c := Default()
	if err := yaml.Unmarshal(bs, c); err != nil {
		return nil, err
	}

	return c, nil
}
