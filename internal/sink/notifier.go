package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketscanner/pkg/broadcaster"
)

const (
	// maxChunkChars is the per-send budget from spec §6: "the core chunks
	// messages under a 4000-character per-send budget".
	maxChunkChars = 4000
	// chunkDelay separates consecutive chunks of the same message (spec §6:
	// "delays ≈300 ms between chunks").
	chunkDelay = 300 * time.Millisecond
)

// notificationMessage is the wire shape pushed onto the broadcaster for a
// chat-bridge subscriber (spec §6's Notification Sink: "channel_identifier,
// recipient_ids, message_text").
type notificationMessage struct {
	Channel      string   `json:"channel"`
	RecipientIDs []string `json:"recipient_ids"`
	Text         string   `json:"text"`
	Chunk        int      `json:"chunk"`
	Chunks       int      `json:"chunks"`
}

// Notifier is the notification-sink side of the external interfaces: it
// formats a detection summary as plain text, chunks it under the
// per-send character budget, and fans it out over an internal WebSocket
// channel that an external chat-bridge process subscribes to — adapted
// from pkg/broadcaster.Broadcaster, which the teacher used to fan streaming
// updates out to dashboard clients instead of a chat bridge.
type Notifier struct {
	logger      *zap.Logger
	broadcaster *broadcaster.Broadcaster
	channel     string
	recipients  []string
	enabled     bool
}

// NewNotifier wraps an already-running Broadcaster. enabled mirrors
// Config.SendNotifications: when false, Notify is a no-op so a scan session
// can be configured to update the event store without paging anyone.
func NewNotifier(logger *zap.Logger, b *broadcaster.Broadcaster, channel string, recipients []string, enabled bool) *Notifier {
	return &Notifier{logger: logger, broadcaster: b, channel: channel, recipients: recipients, enabled: enabled}
}

// Notify chunks text and broadcasts each chunk in order, sleeping
// chunkDelay between sends. It returns early if ctx is cancelled mid-send.
func (n *Notifier) Notify(ctx context.Context, text string) error {
	if !n.enabled || n.broadcaster == nil {
		return nil
	}

	chunks := chunkText(text, maxChunkChars)
	for i, chunk := range chunks {
		msg := notificationMessage{
			Channel:      n.channel,
			RecipientIDs: n.recipients,
			Text:         chunk,
			Chunk:        i + 1,
			Chunks:       len(chunks),
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("notifier: failed to marshal message: %w", err)
		}
		n.broadcaster.Broadcast(data)

		if i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(chunkDelay):
			}
		}
	}
	return nil
}

// chunkText splits text on line boundaries into pieces of at most max
// characters, so a detection summary's lines never split mid-sentence. A
// single line longer than max is not split and becomes its own oversized
// chunk.
func chunkText(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if cur.Len()+len(line)+1 > max && cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// SummarizeRecord renders an EventRecord as the plain-text message body a
// chat recipient sees, listing every flagged strategy plus the typed
// companion fields.
func SummarizeRecord(rec EventRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s @ %s\n", rec.Venue, rec.Symbol, rec.Timeframe, rec.BarTs.Format(time.RFC3339))

	names := make([]string, 0, len(rec.Flags))
	for name, fired := range rec.Flags {
		if fired {
			names = append(names, name)
		}
	}
	fmt.Fprintf(&b, "strategies: %s\n", strings.Join(names, ", "))

	dir := "flat"
	switch {
	case rec.Direction > 0:
		dir = "up"
	case rec.Direction < 0:
		dir = "down"
	}
	fmt.Fprintf(&b, "direction: %s, strength: %s", dir, rec.Strength)
	if rec.BreakoutType != "" {
		fmt.Fprintf(&b, ", breakout: %s", rec.BreakoutType)
	}
	return b.String()
}
