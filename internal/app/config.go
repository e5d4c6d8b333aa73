package app

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/checkin"
	"github.com/suseoaa/oaacore/internal/portal"
	"github.com/suseoaa/oaacore/internal/update"
)

type Config struct {
	Server struct {
		Port string `toml:"port" validate:"required"`
	} `toml:"server"`

	Database struct {
		DSN           string `toml:"dsn" validate:"required"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	// Redis is optional. With no URL sessions live in process memory
	// and die with the daemon.
	Redis struct {
		URL                string `toml:"url"`
		PortalKeyTemplate  string `toml:"portal_key_template"`
		CheckinKeyTemplate string `toml:"checkin_key_template"`
	} `toml:"redis"`

	Portal struct {
		BaseURL string `toml:"base_url"`
	} `toml:"portal"`

	Checkin struct {
		BaseURL string `toml:"base_url"`
		UIASURL string `toml:"uias_url"`
	} `toml:"checkin"`

	Sync struct {
		IntervalMinutes   int  `toml:"interval_minutes"`
		FetchGradeDetails bool `toml:"fetch_grade_details"`
	} `toml:"sync"`

	// Bot is optional. With no token the telegram bot stays off.
	Bot struct {
		Token    string  `toml:"token"`
		AdminIDs []int64 `toml:"admin_ids"`
	} `toml:"bot"`

	// Export is optional. With no sheet id the grade export stays off.
	Export struct {
		CredentialsPath string `toml:"credentials_path"`
		SheetID         string `toml:"sheet_id"`
		SheetName       string `toml:"sheet_name"`
		Schedule        string `toml:"schedule"`
	} `toml:"export"`

	Update struct {
		Repo string `toml:"repo"`
	} `toml:"update"`
}

func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Database.MigrationsDir == "" {
		config.Database.MigrationsDir = "./migrations"
	}
	if config.Redis.PortalKeyTemplate == "" {
		config.Redis.PortalKeyTemplate = "oaa:session:portal:%s"
	}
	if config.Redis.CheckinKeyTemplate == "" {
		config.Redis.CheckinKeyTemplate = "oaa:session:checkin:%s"
	}
	if config.Portal.BaseURL == "" {
		config.Portal.BaseURL = portal.DefaultBaseURL
	}
	if config.Checkin.BaseURL == "" {
		config.Checkin.BaseURL = checkin.DefaultBaseURL
	}
	if config.Checkin.UIASURL == "" {
		config.Checkin.UIASURL = checkin.DefaultUIASURL
	}
	if config.Sync.IntervalMinutes <= 0 {
		config.Sync.IntervalMinutes = 60
	}
	if config.Export.SheetName == "" {
		config.Export.SheetName = "grades"
	}
	if config.Export.Schedule == "" {
		config.Export.Schedule = "0 7 * * *"
	}
	if config.Update.Repo == "" {
		config.Update.Repo = update.DefaultRepo
	}

	logger.Debug.Printf("Loaded sync config: %+v", config.Sync)

	return &config, nil
}
