package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML config file. Only set fields override the
// environment-derived values; zero values leave them untouched.
type fileConfig struct {
	Server struct {
		Port  int  `yaml:"port"`
		Debug bool `yaml:"debug"`
	} `yaml:"server"`

	Storage struct {
		DatabaseURL string `yaml:"database_url"`
		SQLitePath  string `yaml:"sqlite_path"`
	} `yaml:"storage"`

	RabbitMQ struct {
		URL string `yaml:"url"`
	} `yaml:"rabbitmq"`

	OpenAI struct {
		APIKey          string `yaml:"api_key"`
		BaseURL         string `yaml:"base_url"`
		ClassifierModel string `yaml:"classifier_model"`
		VisionModel     string `yaml:"vision_model"`
	} `yaml:"openai"`

	Kapso struct {
		URL           string `yaml:"url"`
		APIKey        string `yaml:"api_key"`
		PhoneNumberID string `yaml:"phone_number_id"`
	} `yaml:"kapso"`

	Delivery struct {
		Workers       int `yaml:"workers"`
		RatePerSecond int `yaml:"rate_per_second"`
	} `yaml:"delivery"`
}

// applyFile overlays YAML file settings onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.Server.Port != 0 {
		cfg.Port = fc.Server.Port
	}
	if fc.Server.Debug {
		cfg.Debug = true
	}
	if fc.Storage.DatabaseURL != "" {
		cfg.DatabaseURL = fc.Storage.DatabaseURL
	}
	if fc.Storage.SQLitePath != "" {
		cfg.SQLitePath = fc.Storage.SQLitePath
	}
	if fc.RabbitMQ.URL != "" {
		cfg.RabbitMQURL = fc.RabbitMQ.URL
	}
	if fc.OpenAI.APIKey != "" {
		cfg.OpenAIAPIKey = fc.OpenAI.APIKey
	}
	if fc.OpenAI.BaseURL != "" {
		cfg.OpenAIBaseURL = fc.OpenAI.BaseURL
	}
	if fc.OpenAI.ClassifierModel != "" {
		cfg.ClassifierModel = fc.OpenAI.ClassifierModel
	}
	if fc.OpenAI.VisionModel != "" {
		cfg.VisionModel = fc.OpenAI.VisionModel
	}
	if fc.Kapso.URL != "" {
		cfg.KapsoURL = fc.Kapso.URL
	}
	if fc.Kapso.APIKey != "" {
		cfg.KapsoAPIKey = fc.Kapso.APIKey
	}
	if fc.Kapso.PhoneNumberID != "" {
		cfg.KapsoPhoneNumberID = fc.Kapso.PhoneNumberID
	}
	if fc.Delivery.Workers != 0 {
		cfg.DeliveryWorkers = fc.Delivery.Workers
	}
	if fc.Delivery.RatePerSecond != 0 {
		cfg.OutboundRatePerSecond = fc.Delivery.RatePerSecond
	}

	return nil
}
