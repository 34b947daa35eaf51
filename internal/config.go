package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Root            string   `mapstructure:"root"`
	ImageExt        []string `mapstructure:"image_extensions"`
	VideoExt        []string `mapstructure:"video_extensions"`
	JPEGExt         []string `mapstructure:"jpeg_extensions"`
	SidecarSuffixes []string `mapstructure:"sidecar_suffixes"`
	FallbackDate    string   `mapstructure:"fallback_date"`
	FolderYear      bool     `mapstructure:"folder_year_override"`
	MoveSidecars    bool     `mapstructure:"move_sidecars"`
	Timezone        string   `mapstructure:"timezone"`
	UseExifTool     bool     `mapstructure:"use_exiftool"`
	LogFile         string   `mapstructure:"log_file"`
	LogLevel        string   `mapstructure:"log_level"`
	Journal         bool     `mapstructure:"journal"`
	JournalDir      string   `mapstructure:"journal_dir"`
}

const defaultFallbackDate = "1914-05-25"

// DefaultConfig returns the built-in settings, as used when no config
// file exists.
func DefaultConfig() *Config {
	return &Config{
		ImageExt:        []string{".jpg", ".jpeg", ".png", ".heic"},
		VideoExt:        []string{".mp4"},
		JPEGExt:         []string{".jpg", ".jpeg"},
		SidecarSuffixes: []string{".json"},
		FallbackDate:    defaultFallbackDate,
		FolderYear:      true,
		Timezone:        "Local",
		LogFile:         "chronofix.log",
		LogLevel:        "info",
		Journal:         true,
	}
}

// LoadConfig reads chronofix.toml from configFile, or from the user config
// directory when configFile is empty. A missing file is not an error.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to find user config dir: %w", err)
		}
		v.SetConfigName("chronofix")
		v.AddConfigPath(filepath.Join(configDir, "chronofix"))
	}

	v.SetEnvPrefix("chronofix")
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("root", def.Root)
	v.SetDefault("image_extensions", def.ImageExt)
	v.SetDefault("video_extensions", def.VideoExt)
	v.SetDefault("jpeg_extensions", def.JPEGExt)
	v.SetDefault("sidecar_suffixes", def.SidecarSuffixes)
	v.SetDefault("fallback_date", def.FallbackDate)
	v.SetDefault("folder_year_override", def.FolderYear)
	v.SetDefault("move_sidecars", def.MoveSidecars)
	v.SetDefault("timezone", def.Timezone)
	v.SetDefault("use_exiftool", def.UseExifTool)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("journal", def.Journal)
	v.SetDefault("journal_dir", defaultJournalDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configFile == "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// no config file; defaults apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultJournalDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "chronofix", "runs")
}

// Validate normalizes extensions to lower case and checks the date and
// timezone settings.
func (c *Config) Validate() error {
	c.ImageExt = normalizeExts(c.ImageExt)
	c.VideoExt = normalizeExts(c.VideoExt)
	c.JPEGExt = normalizeExts(c.JPEGExt)
	if len(c.ImageExt)+len(c.VideoExt) == 0 {
		return fmt.Errorf("%w: no media extensions configured", ErrConfig)
	}
	if _, err := c.SentinelDate(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// Location is the zone that timestamps without offsets are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrConfig, c.Timezone, err)
	}
	return loc, nil
}

// SentinelDate is the date given to files without any date evidence.
func (c *Config) SentinelDate() (time.Time, error) {
	s := c.FallbackDate
	if s == "" {
		s = defaultFallbackDate
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: fallback_date %q: %v", ErrConfig, s, err)
	}
	return d, nil
}

func (c *Config) IsImage(ext string) bool {
	return slices.Contains(c.ImageExt, strings.ToLower(ext))
}

func (c *Config) IsVideo(ext string) bool {
	return slices.Contains(c.VideoExt, strings.ToLower(ext))
}

func (c *Config) IsJPEG(ext string) bool {
	return slices.Contains(c.JPEGExt, strings.ToLower(ext))
}

func (c *Config) IsMedia(ext string) bool {
	return c.IsImage(ext) || c.IsVideo(ext)
}
