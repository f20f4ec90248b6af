package idler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// fetch runs one cycle over every undeleted message in the source folder and
// returns how many were moved to the destination folder. Messages moved
// before an error stay moved; there is no rollback.
func (i *Idler) fetch(ctx context.Context) (int, error) {
	log := i.log.With("cycle", uuid.NewString())

	conn := i.sess.conn
	if conn == nil {
		return i.fetchFailed(log, "search", 0, ErrNotConnected)
	}

	ids, err := conn.SearchUndeleted()
	if err != nil {
		return i.fetchFailed(log, "search", 0, err)
	}
	if len(ids) == 0 {
		log.Debug("No messages found")
		i.track.cycle(0, 0)
		return 0, nil
	}

	log.Info("Messages found, fetching", "count", len(ids))

	bodies, err := conn.FetchRaw(ids)
	if err != nil {
		return i.fetchFailed(log, "fetch", 0, err)
	}

	relocated, skipped := 0, 0
	for _, id := range ids {
		raw, ok := bodies[id]
		if !ok {
			log.Warn("No content returned for message, skipping", "id", id)
			skipped++
			continue
		}

		log.Debug("Sending message to processor", "id", id, "size", len(raw))

		processed, err := i.proc.Process(ctx, raw)
		if errors.Is(err, ErrNotImplemented) {
			return i.fetchFailed(log, "process", relocated, err)
		}
		if err != nil {
			log.Error("Processor failed, leaving message in place", "id", id, "error", err)
			skipped++
			continue
		}

		log.Debug("Processor returned", "id", id, "processed", processed)
		if !processed {
			skipped++
			continue
		}

		if err := conn.Copy(id, i.sess.destination); err != nil {
			return i.fetchFailed(log, "copy", relocated, err)
		}
		if err := conn.MarkDeleted(id); err != nil {
			return i.fetchFailed(log, "mark deleted", relocated, err)
		}
		relocated++
	}

	if err := conn.Expunge(); err != nil {
		return i.fetchFailed(log, "expunge", relocated, err)
	}

	log.Info("Fetch cycle finished", "relocated", relocated, "left", skipped, "destination", i.sess.destination)
	i.track.cycle(relocated, skipped)
	return relocated, nil
}

func (i *Idler) fetchFailed(log *slog.Logger, op string, relocated int, err error) (int, error) {
	log.Error("Cannot fetch messages", "op", op, "relocated", relocated, "error", err)
	ferr := &FetchError{Op: op, Relocated: relocated, Err: err}
	i.track.failedCycle(relocated, ferr)
	return relocated, ferr
}
