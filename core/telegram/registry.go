package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/studiobot/core/logger"
	"github.com/m3rciful/studiobot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// ErrRegistration is returned for invalid or duplicate registry entries.
var ErrRegistration = errors.New("telegram: invalid registration")

// Registry holds bot commands, their aliases and callback handlers.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	aliases          map[string]string
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry with default fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

// CommandKey normalizes text to a "/name" key: the slash is optional, case
// is ignored, and a "@botname" suffix and any arguments are dropped.
func CommandKey(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	if name == "" {
		return ""
	}
	return "/" + name
}

func wireWarn(event string, attrs ...slog.Attr) {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event, attrs...)
}

// RegisterCommand adds a command and its aliases.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	key := CommandKey(name)
	if key == "" || cmd.Handler == nil || cmd.Description == "" {
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return fmt.Errorf("%w: command %q needs a name, handler and description", ErrRegistration, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.taken(key) {
		wireWarn("register.command.duplicate", slog.String("name", key))
		return fmt.Errorf("%w: command %s already registered", ErrRegistration, key)
	}
	aliases := make([]string, 0, len(cmd.Aliases))
	for _, a := range cmd.Aliases {
		ak := CommandKey(a)
		if ak == "" || ak == key {
			continue
		}
		if r.taken(ak) {
			wireWarn("register.alias.duplicate", slog.String("name", key), slog.String("alias", ak))
			return fmt.Errorf("%w: alias %s of %s already taken", ErrRegistration, ak, key)
		}
		aliases = append(aliases, ak)
	}
	cmd.Aliases = aliases
	r.commands[key] = cmd
	for _, ak := range aliases {
		r.aliases[ak] = key
	}
	return nil
}

func (r *Registry) taken(key string) bool {
	_, cmd := r.commands[key]
	_, alias := r.aliases[key]
	return cmd || alias
}

// LookupCommand resolves text typed by a user, alias or not, to the
// canonical command key.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	key := CommandKey(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	cmd, ok := r.commands[key]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, cmd, true
}

// Commands returns a snapshot of the registered commands by key.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterCallback maps a button unique to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		wireWarn("register.callback.skip", slog.String("key", key), slog.Bool("handler_nil", handler == nil))
		return fmt.Errorf("%w: callback %q needs a key and handler", ErrRegistration, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		wireWarn("register.callback.duplicate", slog.String("key", key))
		return fmt.Errorf("%w: callback %s already registered", ErrRegistration, key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler of a button unique.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the sorted callback keys.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callbacks.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text nothing else claimed.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for text nothing else claimed.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// CommandMenu lists menu entries for one audience and language. Admin
// commands are included only when withAdmin is set.
func (r *Registry) CommandMenu(lang string, withAdmin bool) []tele.Command {
	var list []tele.Command
	for cmd, meta := range r.Commands() {
		if meta.Hidden || (meta.AdminOnly && !withAdmin) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(cmd, "/"), Description: meta.DescriptionFor(lang)})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// CommandSetter is the part of the Bot API used to publish command menus.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// Languages returns every language code some command is translated to.
func (r *Registry) Languages() []string {
	seen := make(map[string]struct{})
	for _, meta := range r.Commands() {
		for lang := range meta.Descriptions {
			seen[lang] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// SetupCommands publishes the public command menu for every translated
// language and a chat-scoped menu with admin commands for each admin.
func SetupCommands(api CommandSetter, reg *Registry, adminIDs []int64) {
	if api == nil || reg == nil {
		return
	}
	ctx := context.Background()
	set := func(scope string, cmds []tele.Command, opts ...interface{}) {
		if len(cmds) == 0 {
			return
		}
		if err := api.SetCommands(append([]interface{}{cmds}, opts...)...); err != nil {
			logger.LogEvent(ctx, logger.TWire, slog.LevelError, "register.commands.set_failed",
				slog.String("status", "fail"),
				slog.String("scope", scope),
				slog.String("err", err.Error()),
			)
			return
		}
		logger.LogEvent(ctx, logger.TWire, slog.LevelDebug, "register.commands.set",
			slog.String("status", "ok"),
			slog.String("scope", scope),
			slog.Int("commands", len(cmds)),
		)
	}

	set("default", reg.CommandMenu("", false))
	for _, lang := range reg.Languages() {
		set("default:"+lang, reg.CommandMenu(lang, false), lang)
	}
	for _, id := range adminIDs {
		scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: id}
		set("admin", reg.CommandMenu("", true), scope)
	}
}
