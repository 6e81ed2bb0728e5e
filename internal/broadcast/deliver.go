package broadcast

import (
	"context"
	"strconv"
	"time"

	"talkgroups/internal/messages"
	logx "talkgroups/pkg/logx"
)

// deliver applies the per-recipient mute/notify decisions and sends. One
// decision instant is used for the whole fan-out so throttling windows are
// consistent across recipients.
func (s *Service) deliver(ctx context.Context, msg Message) {
	now := msg.At
	if now.IsZero() {
		now = time.Now()
	}
	ch := msg.Channel

	formatted := s.catalog.Render("channel.format",
		"prefix", ch.Prefix,
		"suffix", ch.Suffix,
		"sender", msg.SenderName,
		"message", msg.Text,
	)

	var sent, suppressed, failed int
	for _, r := range msg.Recipients {
		if ctx.Err() != nil {
			return
		}

		if s.prefs.IsMuted(r.UserID, ch.ID) {
			suppressed++
			s.prefs.IncrementMissed(r.UserID, ch.ID)
			if ch.Notify && s.prefs.ShouldNotify(r.UserID, ch.ID, ch.NotifyDelay, now) {
				s.notifyMissed(ctx, r, msg, now)
			}
			continue
		}

		if err := s.sendOne(ctx, r.Target, formatted); err != nil {
			failed++
			s.log.Warn("channel delivery failed",
				logx.String("channel", ch.ID),
				logx.String("user", r.UserID),
				logx.Err(err))
		} else {
			sent++
		}
	}

	s.log.Debug("channel post delivered",
		logx.String("channel", ch.ID),
		logx.String("sender", msg.SenderID),
		logx.Int("sent", sent),
		logx.Int("suppressed", suppressed),
		logx.Int("failed", failed))
}

// notifyMissed sends the throttled missed-message notice. The counter keeps
// accumulating across notices; it resets only when the user unmutes.
func (s *Service) notifyMissed(ctx context.Context, r Recipient, msg Message, now time.Time) {
	ch := msg.Channel
	count := s.prefs.MissedMessages(r.UserID, ch.ID)
	since, notified := s.prefs.TimeSinceLastNotification(r.UserID, ch.ID, now)

	var text string
	if !notified {
		text = s.catalog.Render("channel.notification.first",
			"count", strconv.Itoa(count),
			"channel", ch.Name,
		)
	} else {
		text = s.catalog.Render("channel.notification",
			"count", strconv.Itoa(count),
			"channel", ch.Name,
			"time", messages.FormatSeconds(since),
		)
	}

	if err := s.sendOne(ctx, r.Target, text); err != nil {
		s.log.Warn("missed-message notice failed",
			logx.String("channel", ch.ID),
			logx.String("user", r.UserID),
			logx.Err(err))
		return
	}
	s.prefs.RecordNotified(r.UserID, ch.ID, now)
}
