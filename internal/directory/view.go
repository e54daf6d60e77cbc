package directory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ehr/providerhub/internal/platform/notification"
)

// Source is where a View loads and mutates providers.
type Source interface {
	ListProviders(ctx context.Context) ([]Provider, error)
	DeleteProvider(ctx context.Context, id string) error
	RefetchProvider(ctx context.Context, id string) (Provider, error)
}

const (
	msgDeleted           = "Provider deleted successfully"
	msgRefreshed         = "Provider data refreshed"
	msgRefreshInProgress = "refresh already in progress"
)

// View is one client's working copy of the provider directory: the loaded
// collection, the search query, the delete confirmation dialog and the
// status of the last delete and refresh. The mutex is not held while the
// source is called.
type View struct {
	source   Source
	notifier notification.Notifier

	mu         sync.Mutex
	query      string
	providers  []Provider
	dialogOpen bool
	target     Target
	deleting   bool
	delState   MutationState
	refState   MutationState
	refreshing map[string]struct{}
	refByID    map[string]MutationState
}

func NewView(source Source, notifier notification.Notifier) *View {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &View{
		source:     source,
		notifier:   notifier,
		refreshing: make(map[string]struct{}),
		refByID:    make(map[string]MutationState),
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notification.Kind, string) {}

// Load replaces the collection with the source's providers.
func (v *View) Load(ctx context.Context) error {
	providers, err := v.source.ListProviders(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.providers = append([]Provider(nil), providers...)
	v.mu.Unlock()
	return nil
}

func (v *View) SetQuery(q string) {
	v.mu.Lock()
	v.query = q
	v.mu.Unlock()
}

func (v *View) Query() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// Visible returns the collection filtered by the current query.
func (v *View) Visible() []Provider {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Filter(v.providers, v.query)
}

// Providers returns a copy of the full collection.
func (v *View) Providers() []Provider {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Provider(nil), v.providers...)
}

// -- Delete --

// RequestDelete opens the confirmation dialog for id, replacing any earlier
// target.
func (v *View) RequestDelete(id string) {
	v.mu.Lock()
	v.target = TargetOf(id)
	v.dialogOpen = true
	v.mu.Unlock()
}

// CancelDelete closes the dialog and forgets the target. A delete already
// confirmed keeps running.
func (v *View) CancelDelete() {
	v.mu.Lock()
	v.target = NoTarget()
	v.dialogOpen = false
	v.mu.Unlock()
}

// ConfirmDelete deletes the pending target. It does nothing when there is no
// target or a delete is already running. On success the provider with that
// exact id is removed and, unless a different target was requested while the
// delete ran, the dialog closes. On failure the dialog and the collection are
// left as they were and an *OperationFailed is returned.
func (v *View) ConfirmDelete(ctx context.Context) error {
	v.mu.Lock()
	id, ok := v.target.Get()
	if !ok || v.deleting {
		v.mu.Unlock()
		return nil
	}
	v.deleting = true
	v.delState = Pending()
	v.mu.Unlock()

	err := v.source.DeleteProvider(ctx, id)

	v.mu.Lock()
	v.deleting = false
	if err != nil {
		v.delState = Failed(err.Error())
		v.mu.Unlock()
		v.notifier.Notify(ctx, notification.KindError, err.Error())
		return &OperationFailed{Op: "delete", Message: err.Error(), Err: err}
	}
	v.providers = removeByID(v.providers, id)
	if v.target == TargetOf(id) {
		v.target = NoTarget()
		v.dialogOpen = false
	}
	v.delState = Succeeded()
	v.mu.Unlock()

	v.notifier.Notify(ctx, notification.KindSuccess, msgDeleted)
	return nil
}

func removeByID(providers []Provider, id string) []Provider {
	out := providers[:0:0]
	for _, p := range providers {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// -- Refresh --

// ErrRefreshInProgress is wrapped by the OperationFailed returned when id
// already has a refresh running in this view.
var ErrRefreshInProgress = errors.New(msgRefreshInProgress)

// Refresh refetches provider id and replaces its row in place. Other rows
// and their order are untouched. Completion is always notified.
func (v *View) Refresh(ctx context.Context, id string) error {
	v.mu.Lock()
	if _, busy := v.refreshing[id]; busy {
		v.mu.Unlock()
		v.notifier.Notify(ctx, notification.KindError, msgRefreshInProgress)
		return &OperationFailed{Op: "refresh", Message: msgRefreshInProgress, Err: ErrRefreshInProgress}
	}
	v.refreshing[id] = struct{}{}
	v.refByID[id] = Pending()
	v.mu.Unlock()

	fresh, err := v.source.RefetchProvider(ctx, id)

	v.mu.Lock()
	delete(v.refreshing, id)
	if err != nil {
		v.refByID[id] = Failed(err.Error())
		v.refState = v.refByID[id]
		v.mu.Unlock()
		v.notifier.Notify(ctx, notification.KindError, err.Error())
		return &OperationFailed{Op: "refresh", Message: err.Error(), Err: err}
	}
	for i := range v.providers {
		if v.providers[i].ID == id {
			v.providers[i] = fresh
			break
		}
	}
	v.refByID[id] = Succeeded()
	v.refState = v.refByID[id]
	v.mu.Unlock()

	v.notifier.Notify(ctx, notification.KindSuccess, msgRefreshed)
	return nil
}

// -- Snapshot --

// State is a point-in-time copy of everything a View shows.
type State struct {
	Query         string                   `json:"query"`
	Providers     []Provider               `json:"providers"`
	Total         int                      `json:"total"`
	DialogOpen    bool                     `json:"delete_dialog_open"`
	PendingDelete Target                   `json:"pending_delete"`
	Delete        MutationState            `json:"delete"`
	Refresh       MutationState            `json:"refresh"`
	RefreshByID   map[string]MutationState `json:"refresh_by_id"`
	Refreshing    []string                 `json:"refreshing"`
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	refreshing := make([]string, 0, len(v.refreshing))
	for id := range v.refreshing {
		refreshing = append(refreshing, id)
	}
	sort.Strings(refreshing)
	byID := make(map[string]MutationState, len(v.refByID))
	for id, st := range v.refByID {
		byID[id] = st
	}
	return State{
		Query:         v.query,
		Providers:     Filter(v.providers, v.query),
		Total:         len(v.providers),
		DialogOpen:    v.dialogOpen,
		PendingDelete: v.target,
		Delete:        v.delState,
		Refresh:       v.refreshStateLocked(),
		RefreshByID:   byID,
		Refreshing:    refreshing,
	}
}

// DialogOpen reports whether the delete confirmation dialog is showing.
func (v *View) DialogOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dialogOpen
}

// PendingDelete returns the current delete target.
func (v *View) PendingDelete() Target {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.target
}

func (v *View) DeleteState() MutationState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.delState
}

// RefreshState is pending while any refresh is running, otherwise the
// outcome of the refresh that finished last.
func (v *View) RefreshState() MutationState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refreshStateLocked()
}

func (v *View) refreshStateLocked() MutationState {
	if len(v.refreshing) > 0 {
		return Pending()
	}
	return v.refState
}

// RefreshStateOf returns the state of the last refresh of id, or idle.
func (v *View) RefreshStateOf(id string) MutationState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if st, ok := v.refByID[id]; ok {
		return st
	}
	return Idle()
}
