package indexer

import "time"

const (
	defaultFetchWindow   uint32 = 500
	defaultMaxReorgDepth        = 100
	defaultPollInterval         = 10 * time.Second
	defaultRetryInterval        = 5 * time.Second
)
