package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Attendee    Attendee      `yaml:"attendee"`
	Hume        Hume          `yaml:"hume"`
	Interview   Interview     `yaml:"interview"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

// Attendee is the bot-hosting API that joins and records meetings on our behalf.
type Attendee struct {
	BaseURL      string        `yaml:"base_url"`
	ApiKey       string        `yaml:"api_key"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollBudget   time.Duration `yaml:"poll_budget"`
}

// Hume is the expression-measurement API that scores recordings frame by frame.
type Hume struct {
	BaseURL      string        `yaml:"base_url"`
	ApiKey       string        `yaml:"api_key"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxPolls     int           `yaml:"max_polls"`
}

type Interview struct {
	CandidateName string `yaml:"candidate_name"`
	MaxJoinRetry  int    `yaml:"max_join_retry"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	viper.SetDefault("attendee.poll_interval", "30s")
	viper.SetDefault("attendee.poll_budget", "2m")
	viper.SetDefault("hume.poll_interval", "10s")
	viper.SetDefault("hume.max_polls", 30)
	viper.SetDefault("interview.max_join_retry", 5)

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Attendee: Attendee{
			BaseURL:      viper.GetString("attendee.base_url"),
			ApiKey:       viper.GetString("attendee.api_key"),
			PollInterval: viper.GetDuration("attendee.poll_interval"),
			PollBudget:   viper.GetDuration("attendee.poll_budget"),
		},
		Hume: Hume{
			BaseURL:      viper.GetString("hume.base_url"),
			ApiKey:       viper.GetString("hume.api_key"),
			PollInterval: viper.GetDuration("hume.poll_interval"),
			MaxPolls:     viper.GetInt("hume.max_polls"),
		},
		Interview: Interview{
			CandidateName: viper.GetString("interview.candidate_name"),
			MaxJoinRetry:  viper.GetInt("interview.max_join_retry"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
