package publisher

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/kafka"
)

// ReloadFunc loads the KB found in dir and swaps it in.
type ReloadFunc func(ctx context.Context, dir string) error

// HandleReload returns a Kafka handler that reloads on every PublishedEvent.
// Events without a directory reload from fallbackDir. A failed reload is
// logged and the message committed: the previous snapshot keeps serving and
// redelivering the same broken artifact would not help.
func HandleReload(reload ReloadFunc, fallbackDir string) kafka.MessageHandler {
	logger := slog.Default().With("component", "kb-reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PublishedEvent](value)
		if err != nil {
			logger.Error("failed to decode kb-published event", "error", err, "key", string(key))
			return nil
		}
		dir := event.KBDir
		if dir == "" {
			dir = fallbackDir
		}
		logger.Info("kb-published event received", "kb_version", event.KBVersion, "dir", dir)
		if err := reload(ctx, dir); err != nil {
			logger.Error("reload after publication failed, keeping previous snapshot",
				"kb_version", event.KBVersion,
				"error", err,
			)
		}
		return nil
	}
}
