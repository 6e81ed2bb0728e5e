// Package router parses incoming chat commands and drives the preference
// cache and broadcast service. Commands:
//
//	/channels          list channels with mute state
//	/mute <channel>    mute by id or alias
//	/unmute <channel>  unmute by id or alias
//	/toggle <channel>  flip mute state
//	/<alias> <text>    send into a channel
package router

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"talkgroups/internal/broadcast"
	"talkgroups/internal/channel"
	"talkgroups/internal/messages"
	"talkgroups/internal/prefs"
	"talkgroups/internal/session"
	"talkgroups/internal/transport"
	logx "talkgroups/pkg/logx"
)

type Router struct {
	registry *channel.Provider
	prefs    *prefs.Manager
	bcast    *broadcast.Service
	sessions *session.Tracker
	catalog  *messages.Catalog
	adapter  transport.Adapter
	log      logx.Logger

	grantsMu sync.RWMutex
	grants   Grants
}

func New(registry *channel.Provider, pm *prefs.Manager, bc *broadcast.Service, sessions *session.Tracker, catalog *messages.Catalog, adapter transport.Adapter, grants Grants, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		registry: registry,
		prefs:    pm,
		bcast:    bc,
		sessions: sessions,
		catalog:  catalog,
		adapter:  adapter,
		grants:   grants,
		log:      log,
	}
}

// SetGrants swaps the permission table on config reload.
func (r *Router) SetGrants(g Grants) {
	r.grantsMu.Lock()
	r.grants = g
	r.grantsMu.Unlock()
}

func (r *Router) allows(userID, perm string) bool {
	r.grantsMu.RLock()
	defer r.grantsMu.RUnlock()
	return r.grants.Allows(userID, perm)
}

// HandleUpdate processes one incoming update. The first update of a user's
// session hydrates their preferences from the store before any command runs.
func (r *Router) HandleUpdate(ctx context.Context, up transport.Update) {
	m := up.Message
	if m == nil {
		return
	}
	userID := strconv.FormatInt(m.FromID, 10)
	target := transport.ChatTarget{ChatID: m.ChatID}
	now := time.Now()

	if first := r.sessions.Touch(userID, m.FromUsername, target, now); first {
		if err := r.prefs.Load(ctx, userID); err != nil {
			r.log.Warn("preference load interrupted", logx.String("user", userID), logx.Err(err))
		} else {
			r.log.Info("session started",
				logx.String("user", userID), logx.String("username", m.FromUsername))
		}
	}

	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// Telegram appends @botname in groups.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "channels", "list":
		r.handleList(ctx, userID, target)
	case "mute":
		r.handleMuteState(ctx, userID, target, args, stateMute)
	case "unmute":
		r.handleMuteState(ctx, userID, target, args, stateUnmute)
	case "toggle":
		r.handleMuteState(ctx, userID, target, args, stateToggle)
	default:
		if def, ok := r.registry.Current().ByAlias(cmd); ok {
			r.handleSend(ctx, userID, m.FromUsername, target, def, strings.Join(args, " "), now)
			return
		}
		r.reply(ctx, target, r.catalog.Render("command.unknown"))
	}
}

func (r *Router) handleList(ctx context.Context, userID string, target transport.ChatTarget) {
	reg := r.registry.Current()
	var b strings.Builder
	b.WriteString(r.catalog.Render("command.channels.header"))
	for _, def := range reg.All() {
		if !r.allows(userID, def.Permission) {
			continue
		}
		state := r.catalog.Render("command.channels.state-on")
		if r.prefs.IsMuted(userID, def.ID) {
			state = r.catalog.Render("command.channels.state-off")
		}
		b.WriteString("\n")
		b.WriteString(r.catalog.Render("command.channels.entry",
			"prefix", def.Prefix,
			"alias", def.Alias,
			"state", state,
		))
	}
	r.reply(ctx, target, b.String())
}

type muteAction int

const (
	stateMute muteAction = iota
	stateUnmute
	stateToggle
)

func (r *Router) handleMuteState(ctx context.Context, userID string, target transport.ChatTarget, args []string, action muteAction) {
	if len(args) == 0 {
		r.reply(ctx, target, r.catalog.Render("command.unknown-channel", "channel", "?"))
		return
	}
	def, ok := r.resolve(args[0])
	if !ok {
		r.reply(ctx, target, r.catalog.Render("command.unknown-channel", "channel", args[0]))
		return
	}
	if !r.allows(userID, def.Permission) {
		r.reply(ctx, target, r.catalog.Render("command.no-permission", "channel", def.Name))
		return
	}
	if !def.Silencable {
		r.reply(ctx, target, r.catalog.Render("command.not-silencable", "channel", def.Name))
		return
	}

	var muted bool
	switch action {
	case stateMute:
		r.prefs.Mute(userID, def.ID)
		muted = true
	case stateUnmute:
		r.prefs.Unmute(userID, def.ID)
		muted = false
	case stateToggle:
		muted, _ = r.prefs.ToggleMute(userID, def.ID)
	}

	key := "command.unmuted"
	if muted {
		key = "command.muted"
	}
	r.reply(ctx, target, r.catalog.Render(key, "channel", def.Name))
}

func (r *Router) handleSend(ctx context.Context, userID, username string, target transport.ChatTarget, def channel.Definition, text string, now time.Time) {
	if !r.allows(userID, def.Permission) {
		r.reply(ctx, target, r.catalog.Render("command.no-permission", "channel", def.Name))
		return
	}
	if strings.TrimSpace(text) == "" {
		r.reply(ctx, target, r.catalog.Render("command.alias.usage", "alias", def.Alias))
		return
	}

	bypass := r.allows(userID, PermBypassCooldown)
	if !bypass && r.prefs.IsOnCooldown(userID, def.ID, now) {
		remaining := r.prefs.RemainingCooldown(userID, def.ID, now)
		r.reply(ctx, target, r.catalog.Render("command.cooldown",
			"seconds", strconv.Itoa(remaining),
			"channel", def.Name,
		))
		return
	}

	recipients := r.recipients(def)
	if err := r.bcast.Submit(broadcast.Message{
		Channel:    def,
		SenderID:   userID,
		SenderName: displayName(username, userID),
		Text:       text,
		Recipients: recipients,
		At:         now,
	}); err != nil {
		r.log.Warn("channel post not queued",
			logx.String("channel", def.ID), logx.String("user", userID), logx.Err(err))
		return
	}

	if def.Cooldown > 0 && !bypass {
		r.prefs.SetCooldown(userID, def.ID, def.Cooldown, now)
	}
}

// recipients resolves the active sessions holding the channel permission.
func (r *Router) recipients(def channel.Definition) []broadcast.Recipient {
	active := r.sessions.Active()
	out := make([]broadcast.Recipient, 0, len(active))
	for _, info := range active {
		if !r.allows(info.UserID, def.Permission) {
			continue
		}
		out = append(out, broadcast.Recipient{UserID: info.UserID, Target: info.Target})
	}
	return out
}

// resolve accepts a channel id or alias.
func (r *Router) resolve(ref string) (channel.Definition, bool) {
	reg := r.registry.Current()
	if def, ok := reg.ByID(ref); ok {
		return def, true
	}
	return reg.ByAlias(ref)
}

func (r *Router) reply(ctx context.Context, to transport.ChatTarget, text string) {
	if err := r.adapter.SendText(ctx, to, text, &transport.SendOptions{DisablePreview: true}); err != nil {
		r.log.Warn("reply failed", logx.Any("chat", to.ChatID), logx.Err(err))
	}
}

func displayName(username, userID string) string {
	if username != "" {
		return "@" + username
	}
	return userID
}
