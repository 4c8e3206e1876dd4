package kafka_config

import "time"

const (
	DefaultKafkaBrokers = ""

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = 1 // leader ack is enough for fire-and-forget events
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = false
)
