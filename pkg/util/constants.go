package util

const (
	// Image used for every database node unless the topology overrides it
	DefaultMongoImage = "mongo:7.0"

	// Pod... container specific constants
	MongoDbDefaultPort  = 27017
	DataVolumePath      = "/data/db"
	LocaltimeMount      = "/etc/localtime:/etc/localtime:ro"
	DefaultNetworkName  = "the-internet-db-proj"
	DefaultExternalHost = "localhost"

	// Process binaries and role flags
	MongodBinary     = "mongod"
	MongosBinary     = "mongos"
	ShardServerFlag  = "--shardsvr"
	ConfigServerFlag = "--configsvr"
	ReplSetFlag      = "--replSet"
	DbPathFlag       = "--dbpath"
	PortFlag         = "--port"
	ConfigDbFlag     = "--configdb"
	BindIpAllFlag    = "--bind_ip_all"

	// Operator Env configuration properties
	OmOperatorEnv          = "OPERATOR_ENV"
	LogFileEnv             = "LOG_FILE"
	LogMaxSizeMBEnv        = "LOG_MAX_SIZE_MB"
	LogMaxBackupsEnv       = "LOG_MAX_BACKUPS"
	LogMaxAgeDaysEnv       = "LOG_MAX_AGE_DAYS"
	TopologyFileEnv        = "TOPOLOGY_FILE"
	HealthProbeTimeoutEnv  = "HEALTH_PROBE_TIMEOUT"
	HealthPollIntervalEnv  = "HEALTH_POLL_INTERVAL"
	HealthWaitTimeoutEnv   = "HEALTH_WAIT_TIMEOUT"
	AdminCommandTimeoutEnv = "ADMIN_COMMAND_TIMEOUT"
	ApiAddrEnv             = "API_ADDR"
	ExternalHostEnv        = "EXTERNAL_HOST"
	OtelEndpointEnv        = "OTEL_EXPORTER_OTLP_ENDPOINT"
	PprofEnabledEnv        = "PPROF_ENABLED"
	RouterCacheSizeEnv     = "ROUTER_CACHE_SIZE"
	ApiUrlEnv              = "API_URL"
	ApiClientTimeoutEnv    = "API_CLIENT_TIMEOUT_SECONDS"

	// Different default configuration values
	DefaultTopologyFile        = "topology.yaml"
	DefaultHealthProbeTimeout  = "2s"
	DefaultHealthPollInterval  = "1s"
	DefaultAdminCommandTimeout = "30s"
	DefaultApiAddr             = ":8000"
	DefaultApiUrl              = "http://localhost:8000"
	DefaultRouterCacheSize     = 4
	DefaultLogMaxSizeMB        = 100
	DefaultLogMaxBackups       = 3
	DefaultLogMaxAgeDays       = 28

	// Weather collection served by the API
	WeatherDatabase       = "env-canada"
	WeatherCollection     = "weather"
	GeolocationField      = "geolocation"
	TimestampField        = "timestamp"
	StationLongitudeField = "stationLongitude"
	DistanceField         = "distanceToWeatherStation"

	// All others
	MinimumMongoVersion = ">= 4.4"
)

type OperatorEnvironment string

func (o OperatorEnvironment) String() string {
	return string(o)
}

const (
	OperatorEnvironmentDev  OperatorEnvironment = "dev"
	OperatorEnvironmentProd OperatorEnvironment = "prod"
)
