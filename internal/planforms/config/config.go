// Application configuration loaded from environment variables.
// Struct tags name the variable for each field; secret values are masked in
// the startup log. Defaults are clamped in ReadConfig.
package config

import (
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strings"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_URL"`

	ListenAddress string `env:"LISTEN_ADDRESS"`

	WebURLRaw string `env:"WEB_URL"`
	WebURL    *url.URL

	// Minio/S3 backend for uploaded files. When the endpoint is empty the
	// engine falls back to a local directory.
	AWSAccessKey  string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint   string `env:"AWS_S3_ENDPOINT_URL"`
	AWSBucketName string `env:"AWS_S3_BUCKET_NAME"`

	UploadsPath string `env:"UPLOADS_PATH"`

	EmailHost     string `env:"EMAIL_HOST"`
	EmailUser     string `env:"EMAIL_HOST_USER"`
	EmailPassword string `env:"EMAIL_HOST_PASSWORD"`
	EmailPort     int    `env:"EMAIL_PORT"`
	EmailFrom     string `env:"EMAIL_FROM"`
	EmailWorkers  int    `env:"EMAIL_WORKERS"`

	// Per-webhook call timeout and total dispatch budget, in seconds.
	WebhookTimeout      int `env:"WEBHOOK_TIMEOUT"`
	WebhookTotalTimeout int `env:"WEBHOOK_TOTAL_TIMEOUT"`

	MaxUploadSizeMB int `env:"MAX_UPLOAD_SIZE_MB"`
}

// ReadConfig loads the configuration from environment variables and applies
// defaults. WEB_URL, when set, must parse; otherwise the process exits.
func ReadConfig() *Config {
	config := &Config{}

	envConfig("env", config)

	if config.WebURLRaw != "" {
		var err error
		config.WebURL, err = url.Parse(config.WebURLRaw)
		if err != nil {
			slog.Error("WEB_URL incorrect", "err", err)
			os.Exit(1)
		}
	}

	if config.ListenAddress == "" {
		config.ListenAddress = ":8005"
	}

	if config.DatabaseDSN == "" {
		config.DatabaseDSN = "planforms.db"
	}

	if config.UploadsPath == "" {
		config.UploadsPath = "uploads"
	}

	if config.EmailWorkers <= 0 {
		config.EmailWorkers = 2
	}

	if config.WebhookTimeout <= 0 {
		config.WebhookTimeout = 5
	}

	if config.WebhookTotalTimeout <= 0 || config.WebhookTotalTimeout < config.WebhookTimeout {
		config.WebhookTotalTimeout = config.WebhookTimeout * 2
	}

	if config.MaxUploadSizeMB <= 0 {
		config.MaxUploadSizeMB = 20
	}

	return config
}

// envConfig assigns environment values to the fields of s. The variable name
// for each field is taken from its struct tag.
func envConfig(key string, s interface{}) {
	v := reflect.ValueOf(s).Elem()
	typeParam := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fName := typeParam.Field(i).Name
		fEnvTag := typeParam.Field(i).Tag.Get(key)

		if !Exist(fEnvTag) {
			continue
		}

		logValue := GetEnv(fEnvTag)
		if logValue == "" {
			continue
		}

		// Secure passwords in log
		lower := strings.ToLower(fName)
		if strings.Contains(lower, "pass") || strings.Contains(lower, "secret") || strings.Contains(lower, "key") {
			pass := strings.Split(GetEnv(fEnvTag), "")
			logValue = pass[0]
			for i := 1; i < len(pass)-1; i++ {
				logValue += "*"
			}
			logValue += pass[len(pass)-1]
		}
		slog.Info("Set config value",
			slog.String("key", typeParam.Name()+"."+fName),
			slog.String("value", logValue),
			slog.String("source", "ENVIRONMENT"),
		)

		switch v.Field(i).Interface().(type) {
		case string:
			v.Field(i).SetString(GetEnv(fEnvTag))
		case int:
			v.Field(i).SetInt(int64(GetIntEnv(fEnvTag)))
		case bool:
			v.Field(i).SetBool(GetBoolEnv(fEnvTag))
		}
	}
}
