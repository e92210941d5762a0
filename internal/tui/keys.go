package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/flowcanvas/internal/session"
)

type Action string

type Binding struct {
	Action Action
	Keys   []string
	Help   string
	Scopes []string
}

// KeyRegistry maps key names to actions per scope. Lookups fall back to the
// global scope.
type KeyRegistry struct {
	bindingsByScope map[string][]*Binding
	indexByScope    map[string]map[string]*Binding
}

const (
	scopeGlobal      = "global"
	scopeGraph       = "graph"
	scopeAnnotations = "annotations"
	scopeEdit        = "edit"
	scopeFind        = "find"
)

const (
	actionQuit   Action = "quit"
	actionUp     Action = "up"
	actionDown   Action = "down"
	actionEdit   Action = "edit"
	actionSave   Action = "save"
	actionJump   Action = "jump"
	actionCancel Action = "cancel"
	actionBack   Action = "back"
	actionToggle Action = "toggle_view"
	actionFind   Action = "find"
)

var actionKeys = map[Action]session.Key{
	actionQuit:   session.KeyQuit,
	actionUp:     session.KeyUp,
	actionDown:   session.KeyDown,
	actionEdit:   session.KeyConfirm,
	actionSave:   session.KeyConfirm,
	actionJump:   session.KeyConfirm,
	actionCancel: session.KeyCancel,
	actionBack:   session.KeyCancel,
	actionToggle: session.KeyTab,
	actionFind:   session.KeyFind,
}

func NewKeyRegistry() *KeyRegistry {
	r := &KeyRegistry{
		bindingsByScope: make(map[string][]*Binding),
		indexByScope:    make(map[string]map[string]*Binding),
	}
	reg := func(scope string, action Action, keys []string, help string) {
		r.Register(Binding{Action: action, Keys: keys, Help: help, Scopes: []string{scope}})
	}

	reg(scopeGlobal, actionQuit, []string{"ctrl+c"}, "quit")

	reg(scopeGraph, actionUp, []string{"up", "k"}, "up")
	reg(scopeGraph, actionDown, []string{"down", "j"}, "down")
	reg(scopeGraph, actionEdit, []string{"enter", "c"}, "annotate")
	reg(scopeGraph, actionFind, []string{"/"}, "find")
	reg(scopeGraph, actionToggle, []string{"tab"}, "annotations")
	reg(scopeGraph, actionCancel, []string{"q", "esc"}, "quit")

	reg(scopeAnnotations, actionUp, []string{"up", "k"}, "up")
	reg(scopeAnnotations, actionDown, []string{"down", "j"}, "down")
	reg(scopeAnnotations, actionEdit, []string{"enter", "c"}, "edit")
	reg(scopeAnnotations, actionToggle, []string{"tab"}, "graph")
	reg(scopeAnnotations, actionBack, []string{"esc"}, "back")
	reg(scopeAnnotations, actionQuit, []string{"q"}, "quit")

	reg(scopeEdit, actionSave, []string{"enter"}, "save")
	reg(scopeEdit, actionCancel, []string{"esc"}, "discard")

	reg(scopeFind, actionUp, []string{"up"}, "prev match")
	reg(scopeFind, actionDown, []string{"down"}, "next match")
	reg(scopeFind, actionJump, []string{"enter"}, "jump")
	reg(scopeFind, actionCancel, []string{"esc"}, "close")

	return r
}

func (r *KeyRegistry) Register(b Binding) {
	if r == nil {
		return
	}
	for _, scope := range b.Scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" || len(b.Keys) == 0 {
			continue
		}
		if _, ok := r.indexByScope[scope]; !ok {
			r.indexByScope[scope] = make(map[string]*Binding)
		}
		normKeys := normalizeKeyList(b.Keys)
		if len(normKeys) == 0 || r.scopeHasAnyKey(scope, normKeys) {
			continue
		}

		copyBinding := b
		copyBinding.Keys = normKeys
		copyBinding.Scopes = []string{scope}
		r.bindingsByScope[scope] = append(r.bindingsByScope[scope], &copyBinding)
		for _, k := range copyBinding.Keys {
			r.indexByScope[scope][k] = &copyBinding
		}
	}
}

func (r *KeyRegistry) BindingsForScope(scope string) []Binding {
	if r == nil {
		return nil
	}
	items := r.bindingsByScope[scope]
	out := make([]Binding, 0, len(items))
	for _, b := range items {
		out = append(out, *b)
	}
	return out
}

func (r *KeyRegistry) Lookup(keyName, scope string) *Binding {
	if r == nil || keyName == "" {
		return nil
	}
	keyName = normalizeKeyName(keyName)
	if b := r.lookupInScope(keyName, scope); b != nil {
		return b
	}
	if scope != scopeGlobal {
		return r.lookupInScope(keyName, scopeGlobal)
	}
	return nil
}

// HelpBindings returns the scope's bindings followed by the global ones.
func (r *KeyRegistry) HelpBindings(scope string) []key.Binding {
	items := r.BindingsForScope(scope)
	if scope != scopeGlobal {
		items = append(items, r.BindingsForScope(scopeGlobal)...)
	}
	out := make([]key.Binding, 0, len(items))
	for _, b := range items {
		if len(b.Keys) == 0 {
			continue
		}
		out = append(out, key.NewBinding(key.WithKeys(b.Keys...), key.WithHelp(b.Keys[0], b.Help)))
	}
	return out
}

// Translate decodes a terminal key into a session key. In the edit and find
// scopes unbound printable keys become text.
func (r *KeyRegistry) Translate(msg tea.KeyMsg, scope string) session.KeyEvent {
	if b := r.Lookup(msg.String(), scope); b != nil {
		return session.KeyEvent{Key: actionKeys[b.Action]}
	}
	if scope != scopeEdit && scope != scopeFind {
		return session.KeyEvent{}
	}
	switch msg.Type {
	case tea.KeyRunes:
		return session.KeyEvent{Key: session.KeyText, Text: string(msg.Runes)}
	case tea.KeySpace:
		return session.KeyEvent{Key: session.KeyText, Text: " "}
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		return session.KeyEvent{Key: session.KeyBackspace}
	}
	return session.KeyEvent{}
}

func (r *KeyRegistry) lookupInScope(keyName, scope string) *Binding {
	lookup, ok := r.indexByScope[scope]
	if !ok {
		return nil
	}
	return lookup[keyName]
}

func (r *KeyRegistry) scopeHasAnyKey(scope string, keys []string) bool {
	lookup := r.indexByScope[scope]
	for _, k := range keys {
		if _, exists := lookup[k]; exists {
			return true
		}
	}
	return false
}

func normalizeKeyList(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool)
	for _, k := range keys {
		n := normalizeKeyName(k)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func normalizeKeyName(k string) string {
	if k == " " {
		return "space"
	}
	trimmed := strings.TrimSpace(k)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) == 1 {
		ch := trimmed[0]
		if ch >= 'A' && ch <= 'Z' {
			return trimmed
		}
	}
	s := strings.ToLower(trimmed)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "control+", "ctrl+")
	s = strings.ReplaceAll(s, "ctl+", "ctrl+")
	s = strings.ReplaceAll(s, "return", "enter")
	s = strings.ReplaceAll(s, "escape", "esc")
	return s
}

// ApplyKeybindingConfig replaces the keys of existing bindings. overrides
// maps scope to action to keys, as read from the [keys] config table.
func (r *KeyRegistry) ApplyKeybindingConfig(overrides map[string]map[string][]string) error {
	if r == nil || len(overrides) == 0 {
		return nil
	}
	scopes := make([]string, 0, len(overrides))
	for scope := range overrides {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	for _, scope := range scopes {
		bindings := r.bindingsByScope[scope]
		if len(bindings) == 0 {
			return fmt.Errorf("keybinding override scope=%q: unknown scope", scope)
		}
		for name, rawKeys := range overrides[scope] {
			action := Action(strings.TrimSpace(name))
			keys := normalizeKeyList(rawKeys)
			if len(keys) == 0 {
				return fmt.Errorf("keybinding override scope=%q action=%q: keys are required", scope, action)
			}
			var target *Binding
			for _, b := range bindings {
				if b.Action == action {
					target = b
					break
				}
			}
			if target == nil {
				return fmt.Errorf("keybinding override scope=%q action=%q: unknown action in scope", scope, action)
			}
			target.Keys = keys
		}
	}

	r.rebuildIndex()
	for scope, bindings := range r.bindingsByScope {
		seen := make(map[string]Action)
		for _, b := range bindings {
			for _, k := range b.Keys {
				if prev, ok := seen[k]; ok {
					return fmt.Errorf("keybinding conflict in scope=%q: key %q used by both %q and %q", scope, k, prev, b.Action)
				}
				seen[k] = b.Action
			}
		}
	}
	return nil
}

func (r *KeyRegistry) rebuildIndex() {
	r.indexByScope = make(map[string]map[string]*Binding, len(r.bindingsByScope))
	for scope, bindings := range r.bindingsByScope {
		r.indexByScope[scope] = make(map[string]*Binding)
		for _, b := range bindings {
			for _, k := range b.Keys {
				r.indexByScope[scope][k] = b
			}
		}
	}
}
