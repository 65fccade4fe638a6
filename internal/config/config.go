package config

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/xanderslabs/Fundit/internal/logger"
)

type Config struct {
	Server    ServerConfig               `mapstructure:"server"`
	Database  DatabaseConfig             `mapstructure:"database"`
	Chains    map[string]ChainConfig     `mapstructure:"chains"`
	Indexer   IndexerConfig              `mapstructure:"indexer"`
	Reconcile ReconcileConfig            `mapstructure:"reconcile"`
	Relay     RelayConfig                `mapstructure:"relay"`
	Log       LogConfig                  `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 单链配置
type ChainConfig struct {
	ChainId         int64  `mapstructure:"chain_id"`         // 链ID
	RpcUrl          string `mapstructure:"rpc_url"`          // RPC节点URL
	ContractAddress string `mapstructure:"contract_address"` // 众筹合约地址
	IsMain          bool   `mapstructure:"is_main"`          // 是否为主链（主链才有业务事件）
	StartBlock      int64  `mapstructure:"start_block"`      // 合约部署区块号
}

// IndexerConfig 索引器配置
type IndexerConfig struct {
	Interval   int `mapstructure:"interval"`    // 调度间隔（秒）
	RetryCount int `mapstructure:"retry_count"` // 链调用重试次数
	RetryDelay int `mapstructure:"retry_delay"` // 重试间隔（秒）
}

// ReconcileConfig 对账配置
type ReconcileConfig struct {
	Interval  int     `mapstructure:"interval"`  // 对账间隔（秒）
	Threshold float64 `mapstructure:"threshold"` // 差异阈值
}

// RelayConfig 直捐中继配置
type RelayConfig struct {
	Interval      int     `mapstructure:"interval"`       // 轮询间隔（秒）
	MasterSeed    string  `mapstructure:"master_seed"`    // 钱包派生主种子
	MinDonation   float64 `mapstructure:"min_donation"`   // 触发中继的最小余额（单位：主币）
	MinGasReserve float64 `mapstructure:"min_gas_reserve"` // gas预留下限（单位：主币）
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, file
	File   string `mapstructure:"file"`   // 日志文件路径
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/fundit")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "fundit")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("indexer.interval", 15)
	viper.SetDefault("indexer.retry_count", 3)
	viper.SetDefault("indexer.retry_delay", 2)
	viper.SetDefault("reconcile.interval", 600)
	viper.SetDefault("reconcile.threshold", 0.01)
	viper.SetDefault("relay.interval", 60)
	viper.SetDefault("relay.min_donation", 0.01)
	viper.SetDefault("relay.min_gas_reserve", 0.0005)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	if err := config.Validate(); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	return &config
}

// Validate 启动时校验配置，配置缺失直接失败而不是降级运行
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("no chains configured")
	}

	mainCount := 0
	for name, chain := range c.Chains {
		if chain.RpcUrl == "" {
			return fmt.Errorf("chain %s: missing rpc_url", name)
		}
		if chain.ContractAddress == "" {
			return fmt.Errorf("chain %s: missing contract_address", name)
		}
		if chain.ChainId == 0 {
			return fmt.Errorf("chain %s: missing chain_id", name)
		}
		if chain.IsMain {
			mainCount++
		}
	}

	if mainCount != 1 {
		return fmt.Errorf("exactly one chain must have is_main=true, got %d", mainCount)
	}

	if c.Relay.MasterSeed == "" {
		return fmt.Errorf("relay.master_seed is required")
	}

	return nil
}

// MainChain 返回主链名称
func (c *Config) MainChain() string {
	for name, chain := range c.Chains {
		if chain.IsMain {
			return name
		}
	}
	return ""
}
