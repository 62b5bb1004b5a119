package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ChainCounter/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// 钱包模式。
const (
	WalletKeyed    = "keyed"
	WalletKeystore = "keystore"
	WalletNone     = "none"
)

// Config 描述了 ChainCounter 守护进程启动时需要加载的配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`
	Web3    Web3Config    `json:"web3"`
	Wallet  WalletConfig  `json:"wallet"`
	Events  EventsConfig  `json:"events"`
}

// ServerConfig 控制 API 服务的监听地址与跨域来源。
type ServerConfig struct {
	Address        string   `json:"address"`
	AllowedOrigins []string `json:"allowed_origins"`
	// MetricsAddress 非空时在独立端口暴露 /metrics。
	MetricsAddress string `json:"metrics_address"`
}

// LoggingConfig 对应 logger.Config。
type LoggingConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 控制交易审计日志。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Web3Config 包含节点地址、链定义文件与合约地址。显式填写的字段优先于链定义。
type Web3Config struct {
	RPCURL            string `json:"rpc_url"`
	ChainConfig       string `json:"chain_config"`
	Chain             string `json:"chain"`
	ContractAddress   string `json:"contract_address"`
	ConfirmPollMillis int    `json:"confirm_poll_millis"`
}

// PollInterval 返回等待交易确认的轮询间隔。
func (c Web3Config) PollInterval() time.Duration {
	return time.Duration(c.ConfirmPollMillis) * time.Millisecond
}

// WalletConfig 描述服务端托管的钱包来源。
type WalletConfig struct {
	Mode          string `json:"mode"`
	PrivateKeyEnv string `json:"private_key_env"`
	KeystorePath  string `json:"keystore_path"`
	PasswordEnv   string `json:"password_env"`
	// Headless 模拟无法承载钱包会话的执行环境。
	Headless bool `json:"headless"`
}

// EventsConfig 选择事件发布驱动。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 发布订阅参数。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

// RabbitMQConfig 描述 RabbitMQ 队列参数。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// Chain 是解析完成后唯一生效的链。
type Chain struct {
	Name     string
	RPCURL   string
	ChainID  uint64
	Contract common.Address
	Notes    string
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(baseDir, "logs", "audit.log")
	}
	c.Logging.Audit.Path = resolvePath(baseDir, c.Logging.Audit.Path)

	if c.Web3.ConfirmPollMillis <= 0 {
		c.Web3.ConfirmPollMillis = 1000
	}
	c.Web3.ChainConfig = resolvePath(baseDir, c.Web3.ChainConfig)

	if c.Wallet.Mode == "" {
		c.Wallet.Mode = WalletKeyed
	}
	if c.Wallet.PrivateKeyEnv == "" {
		c.Wallet.PrivateKeyEnv = "COUNTER_PRIVATE_KEY"
	}
	if c.Wallet.PasswordEnv == "" {
		c.Wallet.PasswordEnv = "COUNTER_KEYSTORE_PASSWORD"
	}
	c.Wallet.KeystorePath = resolvePath(baseDir, c.Wallet.KeystorePath)

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}
}

func (c *Config) validate() error {
	switch c.Wallet.Mode {
	case WalletKeyed, WalletNone:
	case WalletKeystore:
		if c.Wallet.KeystorePath == "" {
			return errors.New("keystore 模式需要配置 keystore_path")
		}
	default:
		return fmt.Errorf("未知的钱包模式: %s", c.Wallet.Mode)
	}
	switch c.Events.Driver {
	case "memory", "none":
	case "redis":
		if c.Events.Redis.Address == "" {
			return errors.New("redis 事件驱动需要配置 address")
		}
	case "rabbitmq":
		if c.Events.RabbitMQ.URL == "" {
			return errors.New("rabbitmq 事件驱动需要配置 url")
		}
	default:
		return fmt.Errorf("未知的事件驱动: %s", c.Events.Driver)
	}
	return nil
}

// ResolveChain 合并链定义文件与显式配置，得到唯一生效的链。
func (c *Config) ResolveChain() (Chain, error) {
	chain := Chain{
		Name:   "default",
		RPCURL: strings.TrimSpace(c.Web3.RPCURL),
	}
	contract := strings.TrimSpace(c.Web3.ContractAddress)

	if c.Web3.ChainConfig != "" {
		defs, err := web3.LoadChainDefinitions(c.Web3.ChainConfig)
		if err != nil {
			return Chain{}, err
		}
		name, def, err := defs.Select(c.Web3.Chain)
		if err != nil {
			return Chain{}, err
		}
		chain.Name = name
		chain.ChainID = def.ChainID
		chain.Notes = def.Description
		if chain.RPCURL == "" {
			chain.RPCURL = def.RPCURL
		}
		if contract == "" {
			contract = def.ContractAddress
		}
	}

	if chain.RPCURL == "" {
		return Chain{}, errors.New("未配置 RPC 地址")
	}
	if !common.IsHexAddress(contract) {
		return Chain{}, fmt.Errorf("合约地址无效: %q", contract)
	}
	chain.Contract = common.HexToAddress(contract)
	return chain, nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
