package common

import (
	"log"
	"os"
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"gopkg.in/ini.v1"
)

// RabbitmqConfig holds RabbitMQ configuration
type RabbitmqConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// JoinConfig holds the semi-join pipeline configuration shared by both stages
type JoinConfig struct {
	StockSymbol      string // target symbol, the single required parameter
	FilterPath       string // well-known shared path for the merged Bloom filter
	OutputPath       string // joined rows output file
	DividendsPath    string // raw dividends input (file or directory)
	StocksPath       string // raw stocks input (file or directory)
	BloomCapacity    uint64
	BloomBitsPerKey  uint32
	ExpectedBuilders int
	ExpectedMappers  int
	BatchSize        int
}

// NodeConfig identifies this node within the pipeline
type NodeConfig struct {
	NodeID string
	Role   NodeRole
}

// Config represents the configuration manager for a pipeline node
type Config struct {
	configPath string
	cfg        *ini.File
}

// Global configuration instance with thread safety
var (
	configInstance *Config
	configOnce     sync.Once
)

// NewConfig creates a new Config instance
func NewConfig(configPath ...string) *Config {
	path := "config.ini"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	config := &Config{
		configPath: path,
	}

	config.loadConfig()
	return config
}

// loadConfig loads configuration from file
func (c *Config) loadConfig() {
	if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
		log.Fatalf("action: config_load | result: fail | error: Configuration file not found: %s", c.configPath)
	}

	cfg, err := ini.Load(c.configPath)
	if err != nil {
		log.Fatalf("action: config_load | result: fail | error: %v", err)
	}

	c.cfg = cfg
	log.Printf("action: config_loaded | result: success | file: %s", c.configPath)
}

// GetRabbitmqConfig returns RabbitMQ configuration
func (c *Config) GetRabbitmqConfig() *RabbitmqConfig {
	section := c.cfg.Section("DEFAULT")

	return &RabbitmqConfig{
		Host:     section.Key("RABBITMQ_HOST").MustString("rabbitmq"),
		Port:     section.Key("RABBITMQ_PORT").MustInt(5672),
		Username: section.Key("RABBITMQ_USER").MustString("admin"),
		Password: section.Key("RABBITMQ_PASSWORD").MustString("admin"),
	}
}

// GetNodeConfig returns the node configuration
func (c *Config) GetNodeConfig() *NodeConfig {
	section := c.cfg.Section("DEFAULT")

	return &NodeConfig{
		NodeID: section.Key("NODE_ID").MustString("0"),
		Role:   NodeRole(section.Key("NODE_ROLE").MustString(string(RoleBloomBuilder))),
	}
}

// GetJoinConfig returns the semi-join pipeline configuration. The stock
// symbol is required: there is no sensible default to prune against.
func (c *Config) GetJoinConfig() *JoinConfig {
	section := c.cfg.Section("DEFAULT")

	symbol := section.Key("STOCK_SYMBOL").String()
	if symbol == "" {
		log.Fatalf("action: config_load | result: fail | error: STOCK_SYMBOL is required")
	}

	return &JoinConfig{
		StockSymbol:      symbol,
		FilterPath:       section.Key("FILTER_PATH").MustString("/data/filters/dividendfilter"),
		OutputPath:       section.Key("OUTPUT_PATH").MustString("/data/output/joined.txt"),
		DividendsPath:    section.Key("DIVIDENDS_PATH").MustString("/data/input/dividends"),
		StocksPath:       section.Key("STOCKS_PATH").MustString("/data/input/stocks"),
		BloomCapacity:    section.Key("BLOOM_CAPACITY").MustUint64(1000),
		BloomBitsPerKey:  uint32(section.Key("BLOOM_BITS_PER_KEY").MustUint(20)),
		ExpectedBuilders: section.Key("EXPECTED_BUILDERS").MustInt(1),
		ExpectedMappers:  section.Key("EXPECTED_MAPPERS").MustInt(1),
		BatchSize:        section.Key("BATCH_SIZE").MustInt(500),
	}
}

// GetLoggingLevel returns the logging level as a string
func (c *Config) GetLoggingLevel() string {
	section := c.cfg.Section("DEFAULT")
	return section.Key("LOGGING_LEVEL").MustString("INFO")
}

// GetMetricsAddr returns the listen address of the Prometheus metrics server
func (c *Config) GetMetricsAddr() string {
	section := c.cfg.Section("DEFAULT")
	return section.Key("METRICS_ADDR").MustString(":9300")
}

// GetHealthPort returns the TCP health check port
func (c *Config) GetHealthPort() string {
	section := c.cfg.Section("DEFAULT")
	return section.Key("HEALTH_PORT").MustString("9301")
}

// GetConfig returns the global configuration instance (singleton pattern)
func GetConfig() *Config {
	configOnce.Do(func() {
		configInstance = NewConfig()
	})
	return configInstance
}

// SetConfigPath allows setting a custom config path for testing
func SetConfigPath(path string) {
	configOnce = sync.Once{}
	configOnce.Do(func() {
		configInstance = NewConfig(path)
	})
}

type NodeRole string

const (
	RoleIngest       NodeRole = "ingest"
	RoleBloomBuilder NodeRole = "bloom_builder"
	RoleBloomMerger  NodeRole = "bloom_merger"
	RoleJoinMapper   NodeRole = "join_mapper"
	RoleReconciler   NodeRole = "reconciler"
)

type Binding struct {
	Exchange   string
	RoutingKey string
}

type OutputRoute struct {
	Exchange   string
	RoutingKey string
}

const (
	// Exchanges
	DividendsExchange     = "dividends_exchange"
	StocksExchange        = "stocks_exchange"
	FilterMergeExchange   = "filter_merge_exchange"
	FilterControlExchange = "filter_control_exchange"
	JoinEntriesExchange   = "join_entries_exchange"
	ResultsExchange       = "results_exchange"

	// Well-known queues for the single-instance stages
	FilterMergeQueue = "bloom_merge_queue"
	JoinEntriesQueue = "join_entries_queue"
)

// Routing key prefixes used to partition the input streams. Builders only see
// their slice of the dividends, mappers their slice of stocks plus dividends.
const (
	BuilderPartitionPrefix = "builder."
	MapperPartitionPrefix  = "mapper."
)

type NodeWiring struct {
	Role         NodeRole
	NodeID       string
	QueueName    string                               // where this node consumes from, "" for ingest
	Bindings     []Binding                            // where the queue reads from
	Outputs      map[protocol.DatasetType]OutputRoute // where each dataset is published
	DeclareExchs []string                             // exchanges to declare (durable)
}

// BuildWiringForRole returns the queue/exchange wiring for a node role.
func BuildWiringForRole(role NodeRole, nodeID string) *NodeWiring {
	switch role {
	case RoleIngest:
		return &NodeWiring{
			Role:   role,
			NodeID: nodeID,
			Outputs: map[protocol.DatasetType]OutputRoute{
				protocol.DatasetTypeDividends: {Exchange: DividendsExchange},
				protocol.DatasetTypeStocks:    {Exchange: StocksExchange},
			},
			DeclareExchs: []string{DividendsExchange, StocksExchange},
		}
	case RoleBloomBuilder:
		return &NodeWiring{
			Role:      role,
			NodeID:    nodeID,
			QueueName: string(role) + "." + nodeID, // e.g. "bloom_builder.0"
			Bindings: []Binding{
				{Exchange: DividendsExchange, RoutingKey: BuilderPartitionPrefix + nodeID},
			},
			Outputs: map[protocol.DatasetType]OutputRoute{
				protocol.DatasetTypeBloomFilter: {Exchange: FilterMergeExchange},
			},
			DeclareExchs: []string{DividendsExchange, FilterMergeExchange},
		}
	case RoleBloomMerger:
		return &NodeWiring{
			Role:      role,
			NodeID:    nodeID,
			QueueName: FilterMergeQueue,
			Bindings: []Binding{
				{Exchange: FilterMergeExchange, RoutingKey: ""},
			},
			Outputs: map[protocol.DatasetType]OutputRoute{
				protocol.DatasetTypeControl: {Exchange: FilterControlExchange},
			},
			DeclareExchs: []string{FilterMergeExchange, FilterControlExchange},
		}
	case RoleJoinMapper:
		return &NodeWiring{
			Role:      role,
			NodeID:    nodeID,
			QueueName: string(role) + "." + nodeID, // e.g. "join_mapper.0"
			Bindings: []Binding{
				{Exchange: StocksExchange, RoutingKey: MapperPartitionPrefix + nodeID},
				{Exchange: DividendsExchange, RoutingKey: MapperPartitionPrefix + nodeID},
				{Exchange: FilterControlExchange, RoutingKey: ""},
			},
			Outputs: map[protocol.DatasetType]OutputRoute{
				protocol.DatasetTypeJoinEntries: {Exchange: JoinEntriesExchange},
			},
			DeclareExchs: []string{StocksExchange, DividendsExchange, FilterControlExchange, JoinEntriesExchange},
		}
	case RoleReconciler:
		return &NodeWiring{
			Role:      role,
			NodeID:    nodeID,
			QueueName: JoinEntriesQueue,
			Bindings: []Binding{
				{Exchange: JoinEntriesExchange, RoutingKey: ""},
			},
			Outputs: map[protocol.DatasetType]OutputRoute{
				protocol.DatasetTypeJoined: {Exchange: ResultsExchange},
			},
			DeclareExchs: []string{JoinEntriesExchange, ResultsExchange},
		}
	default:
		log.Fatalf("action: build_wiring | result: fail | error: unknown role %q", role)
		return nil
	}
}
