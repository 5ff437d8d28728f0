package bitcoin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/goodnatureofminers/blockinsight7000-utxoindex/internal/clock"
	"go.uber.org/zap"
)

const (
	hashBlockTopic = "hashblock"
	recvRetryDelay = time.Second
)

// StartBlockSignal subscribes to the node's ZMQ hashblock topic at addr and returns
// a channel receiving a coalesced signal per announced block. An empty addr yields
// a nil channel, which never fires.
func StartBlockSignal(ctx context.Context, addr string, logger *zap.Logger) (<-chan struct{}, error) {
	if addr == "" {
		return nil, nil
	}

	sub := zmq4.NewSub(ctx, zmq4.WithID(zmq4.SocketIdentity("utxo-indexer")))
	if err := sub.Dial(addr); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("connect zmq: %w", err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, hashBlockTopic); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", hashBlockTopic, err)
	}

	notify := make(chan struct{}, 1)
	go relayBlockSignal(ctx, sub, notify, logger.With(zap.String("address", addr)))
	return notify, nil
}

func relayBlockSignal(ctx context.Context, sub zmq4.Socket, notify chan<- struct{}, logger *zap.Logger) {
	defer func() {
		if err := sub.Close(); err != nil {
			logger.Warn("close zmq socket", zap.Error(err))
		}
	}()

	for {
		msg, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("zmq recv failed", zap.Error(err))
			if clock.SleepWithContext(ctx, recvRetryDelay) != nil {
				return
			}
			continue
		}
		if len(msg.Frames) < 2 || string(msg.Frames[0]) != hashBlockTopic {
			logger.Warn("skip malformed zmq message", zap.Int("parts", len(msg.Frames)))
			continue
		}

		select {
		case notify <- struct{}{}:
		default:
		}
	}
}
