package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"ChainCounter/internal/api"
	"ChainCounter/internal/config"
	"ChainCounter/internal/contract"
	"ChainCounter/internal/events"
	"ChainCounter/internal/interaction"
	"ChainCounter/internal/observability/metrics"
	"ChainCounter/internal/web3/ethereum"
	"ChainCounter/internal/web3/wallet"
	"ChainCounter/pkg/logger"
)

// main 是计数器守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("counterd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("COUNTER_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "counter.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	chain, err := cfg.ResolveChain()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
		Fields: map[string]string{
			"chain":    chain.Name,
			"contract": chain.Contract.Hex(),
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("counterd")

	ethClient, err := ethereum.NewClient(ctx, ethereum.Config{
		Name:   chain.Name,
		RPCURL: chain.RPCURL,
		Notes:  chain.Notes,
	})
	if err != nil {
		return err
	}
	defer ethClient.Close()

	if chain.ChainID != 0 {
		id, err := ethClient.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("获取链 ID 失败: %w", err)
		}
		if id.Uint64() != chain.ChainID {
			return fmt.Errorf("节点链 ID %s 与配置 %d 不一致", id, chain.ChainID)
		}
	}

	env, err := buildEnvironment(cfg.Wallet, ethClient)
	if err != nil {
		return err
	}

	client, err := contract.New(env, contract.Config{
		Address:      chain.Contract,
		PollInterval: cfg.Web3.PollInterval(),
	})
	if err != nil {
		return err
	}

	publisher, err := buildPublisher(ctx, cfg.Events)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("关闭事件发布器失败", slog.String("error", err.Error()))
		}
	}()
	if bus, ok := publisher.(*events.MemoryBus); ok {
		go logEvents(ctx, bus)
	}

	ctrl := interaction.NewController(client, interaction.WithPublisher(publisher))

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("指标服务异常退出", slog.String("error", err.Error()))
			}
		}()
	}

	lg.Info("counterd 启动",
		slog.String("chain", chain.Name),
		slog.String("contract", chain.Contract.Hex()),
		slog.String("wallet_mode", cfg.Wallet.Mode),
		slog.String("events", cfg.Events.Driver))

	server := api.NewServer(cfg.Server.Address, ctrl,
		api.WithChainInfo(ethClient),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildEnvironment 根据配置组装钱包执行环境。
func buildEnvironment(cfg config.WalletConfig, backend *ethereum.Client) (wallet.Environment, error) {
	if cfg.Headless {
		return wallet.Headless(), nil
	}

	switch cfg.Mode {
	case config.WalletNone:
		return wallet.Browser(nil), nil
	case config.WalletKeyed:
		raw := strings.TrimSpace(os.Getenv(cfg.PrivateKeyEnv))
		if raw == "" {
			return wallet.Browser(nil), nil
		}
		key, err := wallet.ParsePrivateKey(raw)
		if err != nil {
			return nil, err
		}
		provider, err := wallet.NewKeyedProvider(backend, key)
		if err != nil {
			return nil, err
		}
		return wallet.Browser(provider), nil
	case config.WalletKeystore:
		key, err := wallet.LoadKeystore(cfg.KeystorePath, os.Getenv(cfg.PasswordEnv))
		if err != nil {
			return nil, err
		}
		provider, err := wallet.NewKeyedProvider(backend, key)
		if err != nil {
			return nil, err
		}
		return wallet.Browser(provider), nil
	default:
		return nil, fmt.Errorf("未知的钱包模式: %s", cfg.Mode)
	}
}

func buildPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case "", "memory":
		return events.NewMemoryBus(1024), nil
	case "none":
		return events.Discard{}, nil
	case "redis":
		return events.NewRedisBus(ctx, events.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
	case "rabbitmq":
		return events.NewRabbitMQBus(events.RabbitMQConfig{
			URL:        cfg.RabbitMQ.URL,
			Queue:      cfg.RabbitMQ.Queue,
			Durable:    cfg.RabbitMQ.Durable,
			AutoDelete: cfg.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Driver)
	}
}

// logEvents 在单机部署下把事件写入日志，避免内存总线被写满。
func logEvents(ctx context.Context, bus *events.MemoryBus) {
	lg := logger.Named("events")
	_ = bus.Subscribe(ctx, func(_ context.Context, e events.Event) error {
		lg.Info("event",
			slog.String("id", e.ID),
			slog.String("type", string(e.Type)),
			slog.String("action", e.Action),
			slog.String("counter", e.Counter),
			slog.String("tx_hash", e.TxHash),
			slog.String("error_code", e.ErrorCode))
		return nil
	})
}
