package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Paths struct {
	Tickets   string `yaml:"tickets"`
	Work      string `yaml:"work"`
	Output    string `yaml:"output"`
	ExportLog string `yaml:"export_log"`
	KeyFile   string `yaml:"key_file"`
}

type Voices struct {
	Agent    string `yaml:"agent"`
	Customer string `yaml:"customer"`
}

type Media struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

type TTS struct {
	URL            string  `yaml:"url"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Concurrency    int     `yaml:"concurrency"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type Service struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

type Stream struct {
	Tickets bool `yaml:"tickets"`
	Calls   bool `yaml:"calls"`
}

type Root struct {
	Environment string  `yaml:"environment"`
	LogLevel    string  `yaml:"log_level"`
	Paths       Paths   `yaml:"paths"`
	Voices      Voices  `yaml:"voices"`
	Media       Media   `yaml:"media"`
	TTS         TTS     `yaml:"tts"`
	Evaluagent  Service `yaml:"evaluagent"`
	Database    Service `yaml:"database"`
	Stream      Stream  `yaml:"stream"`
}

func defaults() *Root {
	return &Root{
		Environment: "local",
		LogLevel:    "info",
		Paths: Paths{
			Tickets:   filepath.Join("data", "test_convos_tickets"),
			Work:      "audio_processing",
			Output:    "call_stream",
			ExportLog: "export_log.csv",
			KeyFile:   filepath.Join("config", "keyFile.json"),
		},
		Voices: Voices{Agent: "en-us", Customer: "en-uk"},
		Media:  Media{FFmpeg: "ffmpeg", FFprobe: "ffprobe"},
		TTS: TTS{
			URL:            "https://translate.google.com/translate_tts",
			RatePerSecond:  2,
			Concurrency:    4,
			TimeoutSeconds: 20,
		},
		Evaluagent: Service{URL: "https://api.evaluagent.com/v1"},
		Stream:     Stream{Tickets: true, Calls: false},
	}
}

// Load reads .env, then the YAML file, then environment overrides.
// An explicit path that does not exist is an error; the guessed
// config/<CONFIG_ENV>/config.yaml is optional.
func Load(path string) (*Root, error) {
	_ = godotenv.Load() // loads .env

	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if !explicit {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		path = filepath.Join("config", env, "config.yaml")
	}
	if err := decodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Root) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Root) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("ENVIRONMENT", &cfg.Environment)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("TICKETS_DIR", &cfg.Paths.Tickets)
	str("WORK_DIR", &cfg.Paths.Work)
	str("CALL_STREAM_DIR", &cfg.Paths.Output)
	str("EXPORT_LOG", &cfg.Paths.ExportLog)
	str("KEY_FILE", &cfg.Paths.KeyFile)
	str("AGENT_VOICE", &cfg.Voices.Agent)
	str("CUSTOMER_VOICE", &cfg.Voices.Customer)
	str("FFMPEG_PATH", &cfg.Media.FFmpeg)
	str("FFPROBE_PATH", &cfg.Media.FFprobe)
	str("TTS_URL", &cfg.TTS.URL)
	str("EVALUAGENT_URL", &cfg.Evaluagent.URL)
	str("EVALUAGENT_API_KEY", &cfg.Evaluagent.Key)
	str("DB_URL", &cfg.Database.URL)
	str("DB_API_KEY", &cfg.Database.Key)

	if v := os.Getenv("TTS_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("TTS_RATE: %w", err)
		}
		cfg.TTS.RatePerSecond = f
	}
	if v := os.Getenv("TTS_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TTS_CONCURRENCY: %w", err)
		}
		cfg.TTS.Concurrency = n
	}
	if v := os.Getenv("TICKET_STREAM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TICKET_STREAM: %w", err)
		}
		cfg.Stream.Tickets = b
	}
	if v := os.Getenv("CALL_STREAM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CALL_STREAM: %w", err)
		}
		cfg.Stream.Calls = b
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Root) Validate() error {
	if c.Paths.Work == "" || c.Paths.Output == "" {
		return errors.New("config: work and output paths are required")
	}
	if c.Voices.Agent == "" || c.Voices.Customer == "" {
		return errors.New("config: agent and customer voices are required")
	}
	if c.Voices.Agent == c.Voices.Customer {
		return fmt.Errorf("config: agent and customer voices must differ (both %q)", c.Voices.Agent)
	}
	if c.TTS.Concurrency < 1 {
		return fmt.Errorf("config: tts concurrency must be >= 1, got %d", c.TTS.Concurrency)
	}
	if c.TTS.RatePerSecond < 0 {
		return fmt.Errorf("config: tts rate must be >= 0, got %v", c.TTS.RatePerSecond)
	}
	return nil
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
