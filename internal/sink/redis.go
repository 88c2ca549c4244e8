package sink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/1ureka/abxclient/internal/protocol"
)

// Redis stores every packet as a hash at "<Key>:<sequence>" and indexes them
// in a sorted set at Key scored by sequence. Previous contents of the index
// are replaced. All commands go out in a single transaction.
type Redis struct {
	Client redis.Cmdable
	Key    string
	TTL    time.Duration // zero keeps the keys forever
}

func (r *Redis) Write(ctx context.Context, packets []protocol.Packet) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.Key)
		for _, p := range packets {
			rec := NewRecord(p)
			key := r.PacketKey(p.Sequence)
			pipe.HSet(ctx, key,
				"symbol", rec.Symbol,
				"buy_sell", rec.BuySell,
				"quantity", rec.Quantity,
				"price", rec.Price,
				"sequence", rec.Sequence,
			)
			pipe.ZAdd(ctx, r.Key, redis.Z{Score: float64(p.Sequence), Member: key})
			if r.TTL > 0 {
				pipe.Expire(ctx, key, r.TTL)
			}
		}
		if r.TTL > 0 && len(packets) > 0 {
			pipe.Expire(ctx, r.Key, r.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %d packets in redis: %w", len(packets), err)
	}
	return nil
}

// PacketKey returns the hash key for one sequence.
func (r *Redis) PacketKey(seq uint32) string {
	return r.Key + ":" + strconv.FormatUint(uint64(seq), 10)
}
