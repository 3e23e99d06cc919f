package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Location source kinds.
const (
	LocationOrbit  = "orbit"
	LocationStatic = "static"
)

type Config struct {
	BaseDirectory    string        `yaml:"base_dir"`
	ModelPath        string        `yaml:"model_path"`
	ModelConfigPath  string        `yaml:"model_config_path"`
	LabelPath        string        `yaml:"label_path"`
	ModelInputWidth  int           `yaml:"model_input_width"`
	ModelInputHeight int           `yaml:"model_input_height"`
	ImageDirectory   string        `yaml:"image_dir"`
	DataFile         string        `yaml:"data_file"`
	EventLog         string        `yaml:"event_log"`
	CatalogPath      string        `yaml:"catalog_path"` // empty disables the catalog
	GeoIndexPath     string        `yaml:"geo_index_path"`
	RunBudget        time.Duration `yaml:"run_budget"`
	CaptureInterval  time.Duration `yaml:"capture_interval"`
	DiscardLabels    []string      `yaml:"discard_labels"`
	CameraDevice     string        `yaml:"camera_device"`
	CameraWidth      int           `yaml:"camera_width"`
	CameraHeight     int           `yaml:"camera_height"`
	LocationSource   string        `yaml:"location_source"`
	TLEPath          string        `yaml:"tle_path"`
	StaticLatitude   float64       `yaml:"static_latitude"`
	StaticLongitude  float64       `yaml:"static_longitude"`
	ListenAddr       string        `yaml:"listen_addr"` // empty disables the status server
	MQTTBroker       string        `yaml:"mqtt_broker"`
	MQTTTopic        string        `yaml:"mqtt_topic"`
	MQTTClientID     string        `yaml:"mqtt_client_id"`
	KafkaBrokers     []string      `yaml:"kafka_brokers"`
	KafkaTopic       string        `yaml:"kafka_topic"`
}

// Default returns the configuration used when nothing is overridden. Paths
// are relative to the base directory.
func Default() *Config {
	return &Config{
		BaseDirectory:    ".",
		ModelPath:        filepath.Join("models", "model.tflite"),
		LabelPath:        filepath.Join("models", "labels.txt"),
		ModelInputWidth:  224,
		ModelInputHeight: 224,
		ImageDirectory:   "raw",
		DataFile:         "data.csv",
		EventLog:         "events.log",
		CatalogPath:      "catalog.db",
		GeoIndexPath:     filepath.Join("geo", "cities1000.csv"),
		RunBudget:        170 * time.Minute,
		CaptureInterval:  9 * time.Second,
		DiscardLabels:    []string{"night"},
		CameraDevice:     "0",
		LocationSource:   LocationOrbit,
		TLEPath:          filepath.Join("geo", "iss.tle"),
		MQTTTopic:        "orbitcam/observations",
		MQTTClientID:     "orbitcam",
		KafkaTopic:       "orbitcam.observations",
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path, then environment variables. A .env file in the working directory
// is loaded first and never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseDirectory = getEnv("BASE_DIR", c.BaseDirectory)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ModelConfigPath = getEnv("MODEL_CONFIG_PATH", c.ModelConfigPath)
	c.LabelPath = getEnv("LABEL_PATH", c.LabelPath)
	c.ModelInputWidth = getEnvAsInt("MODEL_INPUT_WIDTH", c.ModelInputWidth)
	c.ModelInputHeight = getEnvAsInt("MODEL_INPUT_HEIGHT", c.ModelInputHeight)
	c.ImageDirectory = getEnv("IMAGE_DIR", c.ImageDirectory)
	c.DataFile = getEnv("DATA_FILE", c.DataFile)
	c.EventLog = getEnv("EVENT_LOG", c.EventLog)
	c.CatalogPath = getEnv("CATALOG_PATH", c.CatalogPath)
	c.GeoIndexPath = getEnv("GEO_INDEX_PATH", c.GeoIndexPath)
	c.RunBudget = getEnvAsDuration("RUN_BUDGET", c.RunBudget)
	c.CaptureInterval = getEnvAsDuration("CAPTURE_INTERVAL", c.CaptureInterval)
	c.DiscardLabels = getEnvAsList("DISCARD_LABELS", c.DiscardLabels)
	c.CameraDevice = getEnv("CAMERA_DEVICE", c.CameraDevice)
	c.CameraWidth = getEnvAsInt("CAMERA_WIDTH", c.CameraWidth)
	c.CameraHeight = getEnvAsInt("CAMERA_HEIGHT", c.CameraHeight)
	c.LocationSource = getEnv("LOCATION_SOURCE", c.LocationSource)
	c.TLEPath = getEnv("TLE_PATH", c.TLEPath)
	c.StaticLatitude = getEnvAsFloat("STATIC_LAT", c.StaticLatitude)
	c.StaticLongitude = getEnvAsFloat("STATIC_LON", c.StaticLongitude)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.MQTTBroker = getEnv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTTopic = getEnv("MQTT_TOPIC", c.MQTTTopic)
	c.MQTTClientID = getEnv("MQTT_CLIENT_ID", c.MQTTClientID)
	c.KafkaBrokers = getEnvAsList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
}

// Validate checks values that would make the run meaningless.
func (c *Config) Validate() error {
	var errs []error

	if c.RunBudget <= 0 {
		errs = append(errs, fmt.Errorf("run budget must be positive, got %s", c.RunBudget))
	}
	// Captures are named by second, so faster cadences would overwrite images.
	if c.CaptureInterval < time.Second {
		errs = append(errs, fmt.Errorf("capture interval must be at least 1s, got %s", c.CaptureInterval))
	}
	if c.ModelInputWidth <= 0 || c.ModelInputHeight <= 0 {
		errs = append(errs, fmt.Errorf("invalid model input size %dx%d", c.ModelInputWidth, c.ModelInputHeight))
	}
	switch c.LocationSource {
	case LocationOrbit:
		if c.TLEPath == "" {
			errs = append(errs, errors.New("orbit location source requires a TLE path"))
		}
	case LocationStatic:
		if c.StaticLatitude < -90 || c.StaticLatitude > 90 || c.StaticLongitude < -180 || c.StaticLongitude > 180 {
			errs = append(errs, fmt.Errorf("static coordinates (%v, %v) out of range", c.StaticLatitude, c.StaticLongitude))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown location source %q", c.LocationSource))
	}

	return errors.Join(errs...)
}

// Resolve returns p joined to the base directory unless p is absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDirectory, p)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
