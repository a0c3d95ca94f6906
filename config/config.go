package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host  string `yaml:"host" json:"host"`
	Port  int    `yaml:"port" json:"port"`
	Debug bool   `yaml:"debug" json:"debug"`
}

type DBConfig struct {
	Type    string `yaml:"type" json:"type"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	Name    string `yaml:"name" json:"name"`
	User    string `yaml:"user" json:"user"`
	Passwd  string `yaml:"passwd" json:"passwd"`
	MaxConn int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int   `yaml:"idle_conn" json:"idle_conn"`
	Debug   bool   `yaml:"debug" json:"debug"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// WhatsAppConfig controls the driver layer behaviour.
type WhatsAppConfig struct {
	// AutoConnect connects all known sessions at startup.
	AutoConnect bool `yaml:"auto_connect" json:"auto_connect"`
	// SendTimeout bounds a single outbound send attempt, seconds.
	SendTimeout int `yaml:"send_timeout" json:"send_timeout"`
	// HubQueueSize is the per-subscriber event queue capacity.
	HubQueueSize int `yaml:"hub_queue_size" json:"hub_queue_size"`
}

type MailConfig struct {
	SmtpHost string `yaml:"smtp_host" json:"smtp_host"`
	SmtpPort int    `yaml:"smtp_port" json:"smtp_port"`
	SmtpUser string `yaml:"smtp_user" json:"smtp_user"`
	SmtpPwd  string `yaml:"smtp_pwd" json:"smtp_pwd"`
	From     string `yaml:"from" json:"from"`
	NotifyTo string `yaml:"notify_to" json:"notify_to"`
}

// AgentConfig points at the AI completion endpoint used by auto-reply agents.
type AgentConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	ApiKey   string `yaml:"api_key" json:"api_key"`
	Timeout  int    `yaml:"timeout" json:"timeout"`
}

type AppConfig struct {
	System   SysConfig      `yaml:"system" json:"system"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DBConfig       `yaml:"database" json:"database"`
	Logger   LogConfig      `yaml:"logger" json:"logger"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp" json:"whatsapp"`
	Mail     MailConfig     `yaml:"mail" json:"mail"`
	Agent    AgentConfig    `yaml:"agent" json:"agent"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "waconsole",
		Location: "Asia/Jakarta",
		Workdir:  "/var/waconsole",
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 1850,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "waconsole",
		User:     "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:     "development",
		Filename: "/var/waconsole/waconsole.log",
	},
	WhatsApp: WhatsAppConfig{
		AutoConnect:  true,
		SendTimeout:  30,
		HubQueueSize: 64,
	},
	Agent: AgentConfig{
		Timeout: 30,
	},
}

func setEnvValue(name string, f func(v string)) {
	if v, ok := os.LookupEnv(name); ok {
		f(v)
	}
}

// LoadConfig reads the yaml configuration file and applies environment
// overrides. A missing file yields the default configuration.
func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "config parse error: %v\n", err)
			}
		}
	}

	setEnvValue("WACONSOLE_SYSTEM_WORKDIR", func(v string) { cfg.System.Workdir = v })
	setEnvValue("WACONSOLE_SYSTEM_DEBUG", func(v string) { cfg.System.Debug = cast.ToBool(v) })
	setEnvValue("WACONSOLE_WEB_HOST", func(v string) { cfg.Web.Host = v })
	setEnvValue("WACONSOLE_WEB_PORT", func(v string) { cfg.Web.Port = cast.ToInt(v) })
	setEnvValue("WACONSOLE_DB_TYPE", func(v string) { cfg.Database.Type = v })
	setEnvValue("WACONSOLE_DB_HOST", func(v string) { cfg.Database.Host = v })
	setEnvValue("WACONSOLE_DB_PORT", func(v string) { cfg.Database.Port = cast.ToInt(v) })
	setEnvValue("WACONSOLE_DB_NAME", func(v string) { cfg.Database.Name = v })
	setEnvValue("WACONSOLE_DB_USER", func(v string) { cfg.Database.User = v })
	setEnvValue("WACONSOLE_DB_PWD", func(v string) { cfg.Database.Passwd = v })
	setEnvValue("WACONSOLE_LOGGER_MODE", func(v string) { cfg.Logger.Mode = v })
	setEnvValue("WACONSOLE_MAIL_NOTIFY_TO", func(v string) { cfg.Mail.NotifyTo = v })
	setEnvValue("WACONSOLE_AGENT_ENDPOINT", func(v string) { cfg.Agent.Endpoint = v })
	setEnvValue("WACONSOLE_AGENT_APIKEY", func(v string) { cfg.Agent.ApiKey = v })

	if cfg.WhatsApp.SendTimeout <= 0 {
		cfg.WhatsApp.SendTimeout = 30
	}
	if cfg.WhatsApp.HubQueueSize <= 0 {
		cfg.WhatsApp.HubQueueSize = 64
	}
	return cfg
}

// InitDirs makes sure the working directory layout exists.
func (c *AppConfig) InitDirs() {
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "data"), 0o755)
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "metrics"), 0o755)
	_ = os.MkdirAll(filepath.Join(c.System.Workdir, "logs"), 0o755)
}
