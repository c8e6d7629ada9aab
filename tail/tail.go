// Live tail: follow a running machine's record stream instead of replaying history.
//
// Record lines are consumed from Kafka topics named <source>.<dataKind>, batched per poll, and
// pushed through the normal session ingest path, so the store's versioning and the timelines
// behave exactly as they do for a windowed load.  Broker trouble is a soft error: it is logged
// and the consumer keeps polling.

package tail

import (
	"bytes"
	"context"

	"github.com/twmb/franz-go/pkg/kgo"

	"replaytop/common"
	"replaytop/session"
	"replaytop/source"
)

// This runs on a goroutine - one goroutine per tailed source, just to be a little resilient.

func RunTail(ctx context.Context, kafkaBroker, sourceID string, s *session.Session) {
	topics := make([]string, 0, 3)
	for _, kind := range source.DataKinds() {
		topics = append(topics, sourceID+"."+kind)
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(kafkaBroker),
		kgo.ConsumerGroup("replaytop-tail"),
		kgo.ConsumeTopics(topics...),
	)
	if err != nil {
		// The broker could be down; surface it and give up on this source, the caller can
		// restart the tail.
		common.Log.Warningf("%s: Failed to create kafka client: %v", sourceID, err)
		return
	}
	defer cl.Close()

	for {
		fetches := cl.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			// Retriable errors are retried inside the client; what surfaces here is worth
			// seeing but not worth dying for.
			common.Log.Infof("%s: SOFT ERROR: Failed to fetch data: %v", sourceID, errs)
		}

		var lines [][]byte
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()
			// A message may carry one line or a newline-joined batch; split handles both.
			lines = append(lines, bytes.Split(record.Value, []byte{'\n'})...)
		}
		if len(lines) > 0 {
			if err := s.IngestLines(lines); err != nil {
				common.Log.Infof("%s: SOFT ERROR: Ingest failed: %v", sourceID, err)
			}
		}
		if err := cl.CommitUncommittedOffsets(ctx); err != nil {
			common.Log.Infof("%s: SOFT ERROR: Commit records failed: %v", sourceID, err)
		}
	}
}
