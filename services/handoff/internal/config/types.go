package config

import "time"

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Handoff HandoffConfig
	Bus     BusConfig
	STT     STTConfig
}

type ServerConfig struct {
	ListenAddr string
	PublicBase string
}

type StoreConfig struct {
	DatabaseURL string
	DataDir     string
	S3Bucket    string
}

type HandoffConfig struct {
	ExpiryWindow   time.Duration
	PollInterval   time.Duration
	MaxPolls       int
	SweepInterval  time.Duration
	MinUploadBytes int64
}

type BusConfig struct {
	URL string
}

type STTConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}
