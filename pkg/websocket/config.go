package websocket

import (
	"fmt"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/util"
)

// Config WebSocket配置
type Config struct {
	// 最大连接数
	MaxConnections int64
	// 心跳间隔
	HeartbeatInterval time.Duration
	// 连接超时时间
	ConnectionTimeout time.Duration
	// 每个连接的发送缓冲区大小
	MessageBufferSize int
	// 读缓冲区大小
	ReadBufferSize int
	// 写缓冲区大小
	WriteBufferSize int
	// 最大入站消息大小
	MaxMessageSize int
	// 是否启用压缩
	EnableCompression bool
	// 压缩等级（-2..9）
	CompressionLevel int
	// 发送缓冲区满时是否丢弃
	DropOnFull bool
	// 慢消费者策略：背压触发时直接断开
	CloseOnBackpressure bool
	// 发送阻塞超时（用于非 DropOnFull 模式）
	SendTimeout time.Duration
	// 是否启用集群模式
	EnableCluster bool
	// 集群节点ID
	ClusterNodeID string
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:      DefaultMaxConnections,
		HeartbeatInterval:   30 * time.Second,
		ConnectionTimeout:   60 * time.Second,
		MessageBufferSize:   DefaultMessageBufferSize,
		ReadBufferSize:      1024,
		WriteBufferSize:     1024,
		MaxMessageSize:      512,
		EnableCompression:   true,
		CompressionLevel:    -2,
		DropOnFull:          true,
		CloseOnBackpressure: false,
		SendTimeout:         50 * time.Millisecond,
	}
}

// LoadConfigFromEnv 从环境变量加载WebSocket配置
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if maxConnections := util.GetIntEnv(EnvWebSocketMaxConnections); maxConnections > 0 {
		config.MaxConnections = maxConnections
	}
	config.HeartbeatInterval = util.GetDurationEnv(EnvWebSocketHeartbeatInterval, config.HeartbeatInterval)
	config.ConnectionTimeout = util.GetDurationEnv(EnvWebSocketConnectionTimeout, config.ConnectionTimeout)

	if messageBufferSize := util.GetIntEnv(EnvWebSocketMessageBufferSize); messageBufferSize > 0 {
		config.MessageBufferSize = int(messageBufferSize)
	}
	if util.GetEnv(EnvWebSocketEnableCompression) != "" {
		config.EnableCompression = util.GetBoolEnv(EnvWebSocketEnableCompression)
	}
	if compressionLevel := util.GetIntEnv(EnvWebSocketCompressionLevel); compressionLevel != 0 {
		config.CompressionLevel = int(compressionLevel)
	}
	if readBuf := util.GetIntEnv(EnvWebSocketReadBufferSize); readBuf > 0 {
		config.ReadBufferSize = int(readBuf)
	}
	if writeBuf := util.GetIntEnv(EnvWebSocketWriteBufferSize); writeBuf > 0 {
		config.WriteBufferSize = int(writeBuf)
	}
	if maxMsg := util.GetIntEnv(EnvWebSocketMaxMessageSize); maxMsg > 0 {
		config.MaxMessageSize = int(maxMsg)
	}
	if util.GetEnv(EnvWebSocketDropOnFull) != "" {
		config.DropOnFull = util.GetBoolEnv(EnvWebSocketDropOnFull)
	}
	if util.GetEnv(EnvWebSocketCloseOnBackpressure) != "" {
		config.CloseOnBackpressure = util.GetBoolEnv(EnvWebSocketCloseOnBackpressure)
	}
	if sendTimeoutMs := util.GetIntEnv(EnvWebSocketSendTimeoutMs); sendTimeoutMs > 0 {
		config.SendTimeout = time.Duration(sendTimeoutMs) * time.Millisecond
	}

	config.EnableCluster = util.GetBoolEnv(EnvWebSocketEnableCluster)
	if clusterNodeID := util.GetEnv(EnvWebSocketClusterNodeID); clusterNodeID != "" {
		config.ClusterNodeID = clusterNodeID
	}

	return config
}

// ValidateConfig 验证WebSocket配置
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}
	if config.MaxConnections <= 0 {
		return fmt.Errorf("最大连接数必须大于0")
	}
	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("心跳间隔必须大于0")
	}
	if config.ConnectionTimeout <= 0 {
		return fmt.Errorf("连接超时时间必须大于0")
	}
	if config.MessageBufferSize <= 0 {
		return fmt.Errorf("消息缓冲区大小必须大于0")
	}
	if config.CompressionLevel < -2 || config.CompressionLevel > 9 {
		return fmt.Errorf("压缩等级必须在-2到9之间")
	}
	if config.ReadBufferSize <= 0 || config.WriteBufferSize <= 0 {
		return fmt.Errorf("读/写缓冲区大小必须大于0")
	}
	if config.MaxMessageSize <= 0 {
		return fmt.Errorf("最大消息大小必须大于0")
	}
	// 心跳间隔应该小于连接超时时间
	if config.HeartbeatInterval >= config.ConnectionTimeout {
		return fmt.Errorf("心跳间隔必须小于连接超时时间")
	}
	if config.CloseOnBackpressure && !config.DropOnFull && config.SendTimeout <= 0 {
		return fmt.Errorf("启用背压断连时必须设置 send timeout")
	}
	if config.EnableCluster && config.ClusterNodeID == "" {
		return fmt.Errorf("集群模式必须设置节点ID")
	}
	return nil
}
