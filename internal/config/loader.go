package config

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"tracker.transitlive.org/internal/report"
	"tracker.transitlive.org/internal/utils"
)

// ValidateConfigFlags ensures that at most one configuration source is
// specified: either a config file "--config-file" or a remote config URL
// "--config-url". Neither is also fine; the tracker then runs on defaults.
func ValidateConfigFlags(configFile, configURL *string) error {
	if (*configFile != "" && *configURL != "") || (*configFile != "" && len(flag.Args()) > 0) || (*configURL != "" && len(flag.Args()) > 0) {
		return fmt.Errorf("only one of --config-file or --config-url can be specified")
	}
	return nil
}

// refreshSettings periodically fetches the dynamic settings from a remote
// URL and swaps them into the running configuration.
//
// Errors during fetch or parse are logged and reported to Sentry, but the
// loop continues. The routine stops when the context is canceled.
func refreshSettings(ctx context.Context, client *http.Client, configURL, authUser, authPass string, cfg *Config, logger *slog.Logger, interval time.Duration, maxRetries int) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping settings refresh routine")
			return
		default:
			settings, err := loadSettingsFromURL(ctx, client, configURL, authUser, authPass, maxRetries)
			if err != nil {
				report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
					Tags:  utils.MakeMap("config_url", configURL),
					Level: sentry.LevelError,
				})
				logger.Error("Failed to refresh remote settings", "error", err)
			} else {
				cfg.UpdateSettings(settings)
				logger.Info("Successfully refreshed tracker settings")
			}
			time.Sleep(interval)
		}
	}
}

// loadSettingsFromFile reads a JSON settings document from disk, applies
// defaults and validates it.
func loadSettingsFromFile(filePath string) (Settings, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file: %v", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal JSON: %v", err)
	}
	if err := settings.Normalize(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// maxConfigBody bounds the remote settings document. A settings file is a
// few hundred bytes; anything past this is not one.
const maxConfigBody = 1 << 20

// loadSettingsFromURL fetches a JSON settings document from a remote
// HTTP(S) endpoint, using the provided client and optional basic
// authentication.
func loadSettingsFromURL(ctx context.Context, client *http.Client, url, authUser, authPass string, maxRetries int) (Settings, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to create request: %v", err)
	}

	if authUser != "" && authPass != "" {
		req.SetBasicAuth(authUser, authPass)
	}

	resp, err := DoWithBackoff(ctx, client, req, maxRetries)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to fetch remote config: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Settings{}, fmt.Errorf("remote config returned status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigBody))
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read remote config: %v", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal JSON: %v", err)
	}
	if err := settings.Normalize(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Service holds dependencies and provides config operations.
type Service struct {
	Logger *slog.Logger
	Client *http.Client
	Config *Config
}

// NewService creates a new Service instance with the provided logger and
// HTTP client.
func NewService(logger *slog.Logger, client *http.Client, config *Config) *Service {
	return &Service{
		Logger: logger,
		Client: client,
		Config: config,
	}
}

// RefreshSettings runs the refresh loop until the context is canceled.
func (s *Service) RefreshSettings(ctx context.Context, url, authUser, authPass string, interval time.Duration, maxRetries int) {
	refreshSettings(ctx, s.Client, url, authUser, authPass, s.Config, s.Logger, interval, maxRetries)
}

// LoadSettingsFromFile loads and validates settings from a local file,
// reporting failures to Sentry.
func LoadSettingsFromFile(filePath string) (Settings, error) {
	settings, err := loadSettingsFromFile(filePath)
	if err != nil {
		err := fmt.Errorf("failed to load config from file %s: %w", filePath, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return Settings{}, err
	}
	return settings, nil
}

// LoadSettingsFromURL loads and validates settings from a remote URL,
// reporting failures to Sentry.
func LoadSettingsFromURL(ctx context.Context, client *http.Client, url, authUser, authPass string, maxRetries int) (Settings, error) {
	settings, err := loadSettingsFromURL(ctx, client, url, authUser, authPass, maxRetries)
	if err != nil {
		err := fmt.Errorf("failed to load config from URL %s: %w", url, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return Settings{}, err
	}
	return settings, nil
}
