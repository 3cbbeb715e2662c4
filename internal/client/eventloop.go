package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/livenative-dev/livenative/internal/watch"
	"github.com/livenative-dev/livenative/pkg/clientmetrics"
	"github.com/livenative-dev/livenative/pkg/nav"
	"github.com/livenative-dev/livenative/pkg/phx"
)

// commandQueueSize bounds the handle→loop command queue.
const commandQueueSize = 64

// liveRedirect is a server navigation instruction carried in a reply or
// event payload.
type liveRedirect struct {
	To   string `json:"to"`
	Kind string `json:"kind,omitempty"`
	Mode string `json:"mode,omitempty"`
}

const (
	redirectKindPush    = "push"
	redirectKindReplace = "replace"
	redirectModePatch   = "patch"
)

type callResult struct {
	payload phx.Payload
	err     error
}

type navResult struct {
	id      nav.HistoryID
	changed bool
	err     error
}

type navCmdKind uint8

const (
	navCmdBack navCmdKind = iota
	navCmdForward
	navCmdTraverse
	navCmdReload
	navCmdPatch
)

// Commands accepted by the loop.
type (
	msgReconnect struct {
		url        string
		opts       ConnectOpts
		joinParams map[string]any
	}
	msgDisconnect struct {
		reply chan error
	}
	msgCall struct {
		event   string
		payload phx.Payload
		reply   chan callResult
	}
	msgCast struct {
		event   string
		payload phx.Payload
	}
	msgNavigate struct {
		url   string
		opts  nav.Options
		reply chan navResult
	}
	msgNavCommand struct {
		kind  navCmdKind
		id    nav.HistoryID
		info  []byte
		url   string
		reply chan navResult
	}
	msgUpload struct {
		file  *LiveFile
		reply chan error
	}
)

// NavState owns the navigation context. Mutations happen only on the
// loop; predicates and reads are safe from any goroutine.
type NavState struct {
	mu  sync.Mutex
	ctx *nav.Context
}

func newNavState(handler nav.EventHandler, logger *slog.Logger) *NavState {
	ctx := nav.New()
	ctx.SetLogger(logger)
	if handler != nil {
		ctx.SetHandler(handler)
	}
	return &NavState{ctx: ctx}
}

// Current returns the current history entry.
func (n *NavState) Current() (nav.HistoryEntry, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.Current()
}

// Entries returns all tracked entries.
func (n *NavState) Entries() []nav.HistoryEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.Entries()
}

// CanGoBack reports whether a back navigation can succeed.
func (n *NavState) CanGoBack() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.CanGoBack()
}

// CanGoForward reports whether a forward navigation can succeed.
func (n *NavState) CanGoForward() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.CanGoForward()
}

// CanTraverseTo reports whether id is tracked.
func (n *NavState) CanTraverseTo(id nav.HistoryID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.CanTraverseTo(id)
}

func (n *NavState) navigate(url string, opts nav.Options, emit bool) (nav.HistoryID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.Navigate(url, opts, emit)
}

func (n *NavState) patch(url string, info []byte, emit bool) (nav.HistoryID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.Patch(url, info, emit)
}

func (n *NavState) back(info []byte, emit bool) (nav.HistoryID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.Back(info, emit)
}

func (n *NavState) forward(info []byte, emit bool) (nav.HistoryID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.Forward(info, emit)
}

func (n *NavState) traverseTo(id nav.HistoryID, info []byte, emit bool) (nav.HistoryID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.TraverseTo(id, info, emit)
}

func (n *NavState) reload(info []byte, emit bool) (nav.HistoryID, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ctx.Reload(info, emit)
}

// connectJob is an in-flight connection attempt. Abandoning the job makes
// its goroutine shut down whatever it established.
type connectJob struct {
	url        string
	joinParams map[string]any
	result     chan connectOutcome
	abandon    chan struct{}
}

type connectOutcome struct {
	client *ConnectedClient
	err    error
}

// loopState is one state of the event loop state machine. Transitions
// are values returned from the per-state step functions so they stay
// inspectable and the cancellation path stays linear.
type loopState interface {
	state() State
}

type stateDisconnected struct{}

type stateConnecting struct {
	job *connectJob
}

type stateConnected struct {
	client *ConnectedClient
	// socketStatuses is the subscription for the lifetime of this
	// connection; refreshed when the socket is swapped.
	socketStatuses <-chan phx.SocketStatus
}

type stateReconnecting struct {
	client         *ConnectedClient
	socketStatuses <-chan phx.SocketStatus
}

type stateFatal struct {
	err error
	// liveReload is retained for diagnostic event observation after a
	// fatal connection error.
	liveReload *LiveChannel
}

func (stateDisconnected) state() State { return StateDisconnected }
func (stateConnecting) state() State   { return StateConnecting }
func (stateConnected) state() State    { return StateConnected }
func (stateReconnecting) state() State { return StateReconnecting }
func (stateFatal) state() State        { return StateFatalError }

// EventLoop runs the session state machine on its own goroutine. All
// session state is owned by that goroutine; the handle communicates via
// the bounded command queue and the status watch channel.
type EventLoop struct {
	cfg        *Config
	logger     *slog.Logger
	cmds       chan any
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	status     *watch.Value[Status]
	httpClient *http.Client
	jar        *CookieJar
	navState   *NavState
	current    atomic.Pointer[ConnectedClient]
}

// NewEventLoop starts a loop connecting to url.
func NewEventLoop(cfg *Config, url string, joinParams map[string]any, opts ConnectOpts) *EventLoop {
	cfg.Normalize()
	logger := cfg.Logger.With("component", "eventloop")
	jar := NewCookieJar(cfg.PersistenceProvider, cfg.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	loop := &EventLoop{
		cfg:        cfg,
		logger:     logger,
		cmds:       make(chan any, commandQueueSize),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		status:     watch.New(Status{State: StateConnecting}),
		httpClient: httpClientWithJar(jar),
		jar:        jar,
		navState:   newNavState(cfg.NavigationHandler, cfg.Logger),
	}

	job := loop.startConnectJob(url, opts, joinParams)
	go loop.run(stateConnecting{job: job})
	return loop
}

// Nav exposes the navigation state for handle-side reads.
func (l *EventLoop) Nav() *NavState { return l.navState }

// Status returns the latest status snapshot.
func (l *EventLoop) Status() Status { return l.status.Get() }

// WatchStatus subscribes to status snapshots.
func (l *EventLoop) WatchStatus() <-chan Status { return l.status.Subscribe() }

// Connected returns the current connected client, when the loop is in
// the connected state.
func (l *EventLoop) Connected() (*ConnectedClient, error) {
	c := l.current.Load()
	if c == nil {
		return nil, ErrClientNotConnected
	}
	return c, nil
}

// Shutdown cancels the loop and waits for it to wind down.
func (l *EventLoop) Shutdown() {
	l.cancel()
	<-l.done
	l.jar.Save()
}

// send enqueues a command, honoring loop cancellation.
func (l *EventLoop) send(cmd any) error {
	select {
	case l.cmds <- cmd:
		return nil
	case <-l.ctx.Done():
		return ErrDisconnected
	}
}

// Call sends a user event and waits until the loop has received the
// reply and applied any embedded diff or redirect side effects.
func (l *EventLoop) Call(event string, payload phx.Payload) (phx.Payload, error) {
	reply := make(chan callResult, 1)
	if err := l.send(msgCall{event: event, payload: payload, reply: reply}); err != nil {
		return phx.Payload{}, err
	}
	select {
	case res := <-reply:
		return res.payload, res.err
	case <-l.ctx.Done():
		return phx.Payload{}, ErrDisconnected
	}
}

// Cast sends a user event without waiting for a reply.
func (l *EventLoop) Cast(event string, payload phx.Payload) error {
	return l.send(msgCast{event: event, payload: payload})
}

// Navigate asks the loop to navigate to url.
func (l *EventLoop) Navigate(url string, opts nav.Options) (nav.HistoryID, bool, error) {
	reply := make(chan navResult, 1)
	if err := l.send(msgNavigate{url: url, opts: opts, reply: reply}); err != nil {
		return 0, false, err
	}
	select {
	case res := <-reply:
		return res.id, res.changed, res.err
	case <-l.ctx.Done():
		return 0, false, ErrDisconnected
	}
}

// NavCommand runs back/forward/traverse/reload/patch on the loop.
func (l *EventLoop) NavCommand(kind navCmdKind, id nav.HistoryID, url string, info []byte) (nav.HistoryID, bool, error) {
	reply := make(chan navResult, 1)
	if err := l.send(msgNavCommand{kind: kind, id: id, url: url, info: info, reply: reply}); err != nil {
		return 0, false, err
	}
	select {
	case res := <-reply:
		return res.id, res.changed, res.err
	case <-l.ctx.Done():
		return 0, false, ErrDisconnected
	}
}

// Back moves the session one history entry back.
func (l *EventLoop) Back(info []byte) (nav.HistoryID, bool, error) {
	return l.NavCommand(navCmdBack, 0, "", info)
}

// Forward undoes the latest Back.
func (l *EventLoop) Forward(info []byte) (nav.HistoryID, bool, error) {
	return l.NavCommand(navCmdForward, 0, "", info)
}

// TraverseTo jumps to a tracked history id.
func (l *EventLoop) TraverseTo(id nav.HistoryID, info []byte) (nav.HistoryID, bool, error) {
	return l.NavCommand(navCmdTraverse, id, "", info)
}

// Reload re-joins the current view.
func (l *EventLoop) Reload(info []byte) (nav.HistoryID, bool, error) {
	return l.NavCommand(navCmdReload, 0, "", info)
}

// Patch rewrites the current entry's URL without rejoining.
func (l *EventLoop) Patch(url string, info []byte) (nav.HistoryID, bool, error) {
	return l.NavCommand(navCmdPatch, 0, url, info)
}

// UploadFile stages and uploads a file through the connected session.
func (l *EventLoop) UploadFile(file *LiveFile) error {
	reply := make(chan error, 1)
	if err := l.send(msgUpload{file: file, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-l.ctx.Done():
		return ErrDisconnected
	}
}

// Reconnect tears down any current session and connects to url.
func (l *EventLoop) Reconnect(url string, opts ConnectOpts, joinParams map[string]any) error {
	return l.send(msgReconnect{url: url, opts: opts, joinParams: joinParams})
}

// Disconnect ends the current session, leaving the loop idle.
func (l *EventLoop) Disconnect() error {
	reply := make(chan error, 1)
	if err := l.send(msgDisconnect{reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-l.ctx.Done():
		return ErrDisconnected
	}
}

func (l *EventLoop) startConnectJob(url string, opts ConnectOpts, joinParams map[string]any) *connectJob {
	job := &connectJob{
		url:        url,
		joinParams: joinParams,
		result:     make(chan connectOutcome, 1),
		abandon:    make(chan struct{}),
	}
	go func() {
		var client *ConnectedClient
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("connection job panicked", "panic", r)
					client, err = nil, ErrJoinPanic
				}
			}()
			client, err = Connect(l.cfg, url, l.httpClient, l.jar, joinParams, opts)
		}()
		select {
		case job.result <- connectOutcome{client: client, err: err}:
		case <-job.abandon:
			if client != nil {
				client.Shutdown(l.cfg)
			}
		}
	}()
	return job
}

// run drives the state machine until cancellation.
func (l *EventLoop) run(initial loopState) {
	defer close(l.done)

	state := initial
	l.publish(state)

	for {
		var next loopState
		switch s := state.(type) {
		case stateDisconnected:
			next = l.stepDisconnected(s)
		case stateConnecting:
			next = l.stepConnecting(s)
		case stateConnected:
			next = l.stepConnected(s)
		case stateReconnecting:
			next = l.stepReconnecting(s)
		case stateFatal:
			next = l.stepFatal(s)
		}

		if next.state() != state.state() {
			l.publish(next)
		}
		state = next

		if l.ctx.Err() != nil {
			l.cleanup(state)
			return
		}
	}
}

func (l *EventLoop) cleanup(state loopState) {
	switch s := state.(type) {
	case stateConnected:
		s.client.Shutdown(l.cfg)
	case stateReconnecting:
		s.client.Shutdown(l.cfg)
	case stateConnecting:
		close(s.job.abandon)
	case stateFatal:
		if s.liveReload != nil {
			s.liveReload.Socket.Shutdown()
		}
	}
	l.current.Store(nil)
	l.status.Set(Status{State: StateDisconnected})
}

// publish records the state snapshot on the watch channel and notifies
// the network handler.
func (l *EventLoop) publish(state loopState) {
	status := Status{State: state.state()}
	switch s := state.(type) {
	case stateConnected:
		status.Channel = s.client.ChannelStatus()
		status.Document = s.client.Main.Doc.Doc
		l.current.Store(s.client)
	case stateReconnecting:
		l.current.Store(nil)
	case stateFatal:
		status.Err = s.err
		l.current.Store(nil)
	default:
		l.current.Store(nil)
	}
	l.publishStatus(status)
}

func (l *EventLoop) publishStatus(status Status) {
	l.status.Set(status)
	if l.cfg.NetworkEventHandler != nil {
		l.cfg.NetworkEventHandler.OnStatusChange(status)
	}
}

func (l *EventLoop) stepDisconnected(s stateDisconnected) loopState {
	select {
	case <-l.ctx.Done():
		return s
	case cmd := <-l.cmds:
		switch m := cmd.(type) {
		case msgReconnect:
			l.logger.Debug("reconnection requested", "url", m.url)
			return stateConnecting{job: l.startConnectJob(m.url, m.opts, m.joinParams)}
		case msgDisconnect:
			m.reply <- nil
			return s
		default:
			l.rejectCommand(cmd, ErrClientNotConnected)
			return s
		}
	}
}

func (l *EventLoop) stepConnecting(s stateConnecting) loopState {
	select {
	case <-l.ctx.Done():
		close(s.job.abandon)
		return stateDisconnected{}

	case cmd := <-l.cmds:
		switch m := cmd.(type) {
		case msgReconnect:
			l.logger.Debug("reconnection requested during connect", "url", m.url)
			close(s.job.abandon)
			return stateConnecting{job: l.startConnectJob(m.url, m.opts, m.joinParams)}
		case msgDisconnect:
			close(s.job.abandon)
			m.reply <- nil
			return stateDisconnected{}
		default:
			l.rejectCommand(cmd, ErrClientNotConnected)
			return s
		}

	case outcome := <-s.job.result:
		if outcome.err != nil {
			return l.fatal(outcome.err)
		}
		// The session now has a location; seed the history without
		// emitting a user event.
		l.navState.navigate(s.job.url, nav.Options{JoinParams: s.job.joinParams}, false)
		return stateConnected{
			client:         outcome.client,
			socketStatuses: outcome.client.Socket.Statuses(),
		}
	}
}

func (l *EventLoop) stepConnected(s stateConnected) loopState {
	client := s.client
	select {
	case <-l.ctx.Done():
		client.Shutdown(l.cfg)
		return stateDisconnected{}

	case cmd := <-l.cmds:
		return l.handleConnectedCommand(s, cmd)

	case ev := <-client.MainEvents():
		return l.handleServerEvent(s, ev)

	case ev := <-client.ReloadEvents():
		return l.handleServerEvent(s, ev)

	case status := <-s.socketStatuses:
		switch status {
		case phx.SocketConnected:
			return s
		case phx.SocketShuttingDown, phx.SocketShutDown:
			return stateDisconnected{}
		default:
			l.logger.Debug("socket lost, entering reconnect", "status", status.String())
			return stateReconnecting{client: client, socketStatuses: s.socketStatuses}
		}
	}
}

func (l *EventLoop) stepReconnecting(s stateReconnecting) loopState {
	select {
	case <-l.ctx.Done():
		s.client.Shutdown(l.cfg)
		return stateDisconnected{}

	case cmd := <-l.cmds:
		switch m := cmd.(type) {
		case msgReconnect:
			s.client.Shutdown(l.cfg)
			return stateConnecting{job: l.startConnectJob(m.url, m.opts, m.joinParams)}
		case msgDisconnect:
			s.client.Shutdown(l.cfg)
			m.reply <- nil
			return stateDisconnected{}
		default:
			l.rejectCommand(cmd, ErrClientNotConnected)
			return s
		}

	case status := <-s.socketStatuses:
		switch status {
		case phx.SocketConnected:
			if err := s.client.Rejoin(l.cfg); err != nil {
				s.client.Shutdown(l.cfg)
				return l.fatal(err)
			}
			return stateConnected{client: s.client, socketStatuses: s.socketStatuses}
		case phx.SocketShuttingDown, phx.SocketShutDown:
			return stateDisconnected{}
		default:
			return s
		}
	}
}

func (l *EventLoop) stepFatal(s stateFatal) loopState {
	var reloadEvents <-chan phx.EventPayload
	if s.liveReload != nil {
		reloadEvents = s.liveReload.Channel.Events()
	}

	select {
	case <-l.ctx.Done():
		return s

	case cmd := <-l.cmds:
		if m, ok := cmd.(msgReconnect); ok {
			if s.liveReload != nil {
				s.liveReload.Socket.Shutdown()
			}
			return stateConnecting{job: l.startConnectJob(m.url, m.opts, m.joinParams)}
		}
		l.rejectCommand(cmd, s.err)
		return s

	case ev := <-reloadEvents:
		// The retained live-reload channel stays observable after a fatal
		// error.
		if l.cfg.NetworkEventHandler != nil {
			l.cfg.NetworkEventHandler.OnEvent(ev)
		}
		return s
	}
}

func (l *EventLoop) fatal(err error) loopState {
	l.logger.Error("session entered fatal state", "error", err)
	next := stateFatal{err: err}
	var connErr *ConnectionError
	if errors.As(err, &connErr) && connErr.LiveReload != nil {
		next.liveReload = connErr.LiveReload
	}
	return next
}

// rejectCommand answers a command that cannot be served in the current
// state.
func (l *EventLoop) rejectCommand(cmd any, err error) {
	switch m := cmd.(type) {
	case msgCall:
		m.reply <- callResult{err: err}
	case msgNavigate:
		m.reply <- navResult{err: err}
	case msgNavCommand:
		m.reply <- navResult{err: err}
	case msgUpload:
		m.reply <- err
	case msgDisconnect:
		m.reply <- err
	case msgCast:
		l.logger.Debug("cast dropped", "error", err)
	}
}

func (l *EventLoop) handleConnectedCommand(s stateConnected, cmd any) loopState {
	client := s.client
	switch m := cmd.(type) {
	case msgCall:
		reply, err := client.Main.Channel.Call(phx.UserEvent(m.event), m.payload, l.cfg.WebsocketTimeout)
		if err != nil {
			l.logger.Error("remote call returned error", "event", m.event, "error", err)
			m.reply <- callResult{err: &CallError{Msg: m.event, Err: err}}
			return s
		}
		// Apply embedded diff and redirect side effects before the caller
		// observes the reply.
		next := l.handleReply(s, reply)
		if l.cfg.NetworkEventHandler != nil {
			l.cfg.NetworkEventHandler.OnEvent(phx.EventPayload{
				Event:   phx.PhoenixEvent(phx.PhoenixReply),
				Payload: reply,
			})
		}
		m.reply <- callResult{payload: reply}
		return next

	case msgCast:
		if err := client.Main.Channel.Cast(phx.UserEvent(m.event), m.payload); err != nil {
			l.logger.Error("cast failed", "event", m.event, "error", err)
		}
		return s

	case msgNavigate:
		next, res := l.doNavigate(s, m.url, m.opts, true)
		m.reply <- res
		return next

	case msgNavCommand:
		next, res := l.doNavCommand(s, m)
		m.reply <- res
		return next

	case msgUpload:
		m.reply <- client.uploadFile(l.cfg, m.file)
		return s

	case msgDisconnect:
		client.Shutdown(l.cfg)
		m.reply <- nil
		return stateDisconnected{}

	case msgReconnect:
		client.Shutdown(l.cfg)
		return stateConnecting{job: l.startConnectJob(m.url, m.opts, m.joinParams)}
	}
	return s
}

// doNavigate records the navigation and rejoins the channel at the new
// URL. The handler may veto, in which case nothing changes.
func (l *EventLoop) doNavigate(s stateConnected, url string, opts nav.Options, emitEvent bool) (loopState, navResult) {
	id, changed := l.navState.navigate(url, opts, emitEvent)
	if !changed {
		return s, navResult{}
	}
	next, err := l.rejoinAt(s, url, opts.JoinParams)
	if err != nil {
		return next, navResult{err: err}
	}
	return next, navResult{id: id, changed: true}
}

// rejoinAt leaves the current channel and joins at target, publishing
// the intermediate channel status so observers see the rejoin.
func (l *EventLoop) rejoinAt(s stateConnected, target string, joinParams map[string]any) (loopState, error) {
	client := s.client

	l.publishStatus(Status{
		State:    StateConnected,
		Channel:  LiveChannelReconnecting,
		Document: client.Main.Doc.Doc,
	})

	swapped, err := client.TryNav(l.cfg, l.httpClient, l.jar, joinParams, target)
	if err != nil {
		if rejection, ok := err.(*JoinRejectionError); ok {
			l.logger.Error("navigation join rejected", "url", target, "payload", rejection.Payload.String())
			return s, rejection
		}
		return s, err
	}

	next := s
	if swapped {
		next = stateConnected{client: client, socketStatuses: client.Socket.Statuses()}
	}
	l.publish(next)
	return next, nil
}

func (l *EventLoop) doNavCommand(s stateConnected, m msgNavCommand) (loopState, navResult) {
	switch m.kind {
	case navCmdBack:
		id, changed := l.navState.back(m.info, true)
		if !changed {
			return s, navResult{}
		}
		return l.finishTraversal(s, id)
	case navCmdForward:
		id, changed := l.navState.forward(m.info, true)
		if !changed {
			return s, navResult{}
		}
		return l.finishTraversal(s, id)
	case navCmdTraverse:
		id, changed := l.navState.traverseTo(m.id, m.info, true)
		if !changed {
			return s, navResult{}
		}
		return l.finishTraversal(s, id)
	case navCmdReload:
		id, changed := l.navState.reload(m.info, true)
		if !changed {
			return s, navResult{}
		}
		return l.finishTraversal(s, id)
	case navCmdPatch:
		id, changed := l.navState.patch(m.url, m.info, true)
		return s, navResult{id: id, changed: changed}
	}
	return s, navResult{}
}

// finishTraversal rejoins the channel at the new current entry after a
// history mutation.
func (l *EventLoop) finishTraversal(s stateConnected, id nav.HistoryID) (loopState, navResult) {
	current, ok := l.navState.Current()
	if !ok {
		return s, navResult{err: ErrClientNotConnected}
	}
	next, err := l.rejoinAt(s, current.URL, s.client.Main.JoinParams)
	if err != nil {
		return next, navResult{err: err}
	}
	return next, navResult{id: id, changed: true}
}

// handleReply applies server instructions embedded in a call reply:
// first any diff, then a live_redirect or redirect, so the document
// reflects the diff before navigation runs.
func (l *EventLoop) handleReply(s stateConnected, reply phx.Payload) loopState {
	next := s

	if diffValue, ok := reply.Get("diff"); ok {
		l.mergeDiff(next, diffValue)
	}
	if redirect, ok := reply.Get("live_redirect"); ok {
		next = l.handleRedirect(next, redirect)
	} else if redirect, ok := reply.Get("redirect"); ok {
		next = l.handleRedirect(next, redirect)
	}
	return next
}

func (l *EventLoop) mergeDiff(s stateConnected, diffValue any) {
	handler := l.cfg.PatchHandler
	if err := s.client.Main.Doc.MergeFragmentValue(diffValue, handler); err != nil {
		l.logger.Error("failed to merge diff", "error", err)
		return
	}
	clientmetrics.DiffsMerged.Inc()
}

// handleRedirect resolves the redirect target against the current URL
// and dispatches on mode: a patch updates only the navigation context;
// anything else navigates with the mapped push/replace action.
func (l *EventLoop) handleRedirect(s stateConnected, value any) loopState {
	redirect, err := decodeRedirect(value)
	if err != nil {
		l.logger.Error("malformed redirect payload", "error", err)
		return s
	}
	target, err := s.client.Session.URL.Parse(redirect.To)
	if err != nil {
		l.logger.Error("unresolvable redirect target", "to", redirect.To, "error", err)
		return s
	}

	if redirect.Mode == redirectModePatch {
		l.navState.patch(target.String(), nil, true)
		return s
	}

	action := nav.ActionPush
	if redirect.Kind == redirectKindReplace {
		action = nav.ActionReplace
	}
	opts := nav.Options{Action: action, JoinParams: s.client.Main.JoinParams}
	next, res := l.doNavigate(s, target.String(), opts, true)
	if res.err != nil {
		l.logger.Error("redirect navigation failed", "url", target.String(), "error", res.err)
	}
	return next
}

// handleServerEvent dispatches one event from the main or live-reload
// channel. Recoverable failures are logged and the loop continues.
func (l *EventLoop) handleServerEvent(s stateConnected, ev phx.EventPayload) loopState {
	next := loopState(s)

	if ev.Event.IsPhoenix {
		l.logger.Debug("phoenix event ignored", "event", ev.Event.String())
	} else {
		switch ev.Event.User {
		case "diff":
			l.mergeDiff(s, ev.Payload.JSON)

		case "assets_change":
			// Development asset rebuild: reconnect to the current view.
			current, ok := l.navState.Current()
			if !ok {
				break
			}
			l.logger.Info("assets changed, reconnecting", "url", current.URL)
			joinParams := s.client.Main.JoinParams
			s.client.Shutdown(l.cfg)
			next = stateConnecting{job: l.startConnectJob(current.URL, ConnectOpts{}, joinParams)}

		case "live_patch":
			redirect, err := decodeRedirect(ev.Payload.JSON)
			if err != nil {
				l.logger.Error("malformed live_patch payload", "error", err)
				break
			}
			target, err := s.client.Session.URL.Parse(redirect.To)
			if err != nil {
				l.logger.Error("unresolvable live_patch target", "to", redirect.To, "error", err)
				break
			}
			l.navState.patch(target.String(), nil, true)

		case "live_redirect", "redirect":
			next = l.handleRedirect(s, ev.Payload.JSON)
		}
	}

	if l.cfg.NetworkEventHandler != nil {
		l.cfg.NetworkEventHandler.OnEvent(ev)
	}
	return next
}

func decodeRedirect(value any) (*liveRedirect, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out liveRedirect
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
