package netwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/netwatch-core/internal/bridges/mikrotik"
	"github.com/nerrad567/netwatch-core/internal/device"
	"github.com/nerrad567/netwatch-core/internal/infrastructure/mqtt"
)

// Command actions accepted on netwatch/command/{action}.
const (
	CommandImport = "import"
	CommandSync   = "sync"
	CommandPoll   = "poll"
	CommandUptime = "uptime"
)

// defaultUptimeWindow is used when an uptime request names no window.
const defaultUptimeWindow = 24 * time.Hour

// commandTimeout bounds one command. An import or sync-all walks every
// device with its own session, so this is generous.
const commandTimeout = 5 * time.Minute

// commandQueueSize is how many commands may wait behind the one running.
const commandQueueSize = 16

// CommandTransport is the MQTT surface used by CommandHandler.
// *mqtt.Client satisfies it.
type CommandTransport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishJSON(topic string, v any, retained bool) error
}

// RemoteImporter imports the router's rules. *Importer satisfies it.
type RemoteImporter interface {
	ImportDevices(ctx context.Context, candidates []Candidate) (ImportResult, error)
	ImportFromRemote(ctx context.Context) (ImportResult, error)
}

// DeviceSyncer pushes devices to the router. *Syncer satisfies it.
type DeviceSyncer interface {
	SyncDevice(ctx context.Context, d *device.Device, previousIP string) SyncResult
	SyncAll(ctx context.Context) []SyncResult
}

// StatusPoller runs a single poll. *Poller satisfies it.
type StatusPoller interface {
	Poll(ctx context.Context) (CycleReport, error)
}

// UptimeSource computes availability for a device. *UptimeReporter
// satisfies it.
type UptimeSource interface {
	DeviceUptime(ctx context.Context, deviceID string, window time.Duration) (Uptime, error)
}

// DeviceLookup resolves a device by IP for the sync and uptime commands.
type DeviceLookup interface {
	GetByIP(ctx context.Context, ip string) (*device.Device, error)
}

// CommandRequest is the optional JSON payload of a command.
//
//	import: {"candidates":[...]} or empty to import from the router
//	sync:   {"ip":"10.0.0.2","previous_ip":"10.0.0.1"} or empty for all
//	poll:   empty
//	uptime: {"ip":"10.0.0.2","window_seconds":3600}
type CommandRequest struct {
	ID            string      `json:"id,omitempty"`
	IP            string      `json:"ip,omitempty"`
	PreviousIP    string      `json:"previous_ip,omitempty"`
	Candidates    []Candidate `json:"candidates,omitempty"`
	WindowSeconds int         `json:"window_seconds,omitempty"`
}

// CommandResponse is published on netwatch/response/{action}.
type CommandResponse struct {
	ID       string            `json:"id,omitempty"`
	Action   string            `json:"action"`
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Category mikrotik.Category `json:"category,omitempty"`

	Import *ImportResult `json:"import,omitempty"`
	Sync   []SyncResult  `json:"sync,omitempty"`
	Poll   *CycleReport  `json:"poll,omitempty"`
	Uptime *Uptime       `json:"uptime,omitempty"`

	At time.Time `json:"at"`
}

// CommandHandlerDeps groups the collaborators of a CommandHandler.
type CommandHandlerDeps struct {
	Transport CommandTransport
	Importer  RemoteImporter
	Syncer    DeviceSyncer
	Poller    StatusPoller
	Uptime    UptimeSource
	Devices   DeviceLookup
	Clock     Clock
}

// CommandHandler runs import, sync, poll and uptime on request over MQTT.
//
// Incoming messages are queued and executed one at a time by Run, off the
// MQTT client's delivery goroutine. Each request gets one response.
// Failures are reported in the response, never dropped.
type CommandHandler struct {
	transport CommandTransport
	importer  RemoteImporter
	syncer    DeviceSyncer
	poller    StatusPoller
	uptime    UptimeSource
	devices   DeviceLookup
	clock     Clock
	topics    mqtt.Topics
	logger    Logger

	queue chan commandMessage

	// ctx is the lifetime context captured by Start.
	ctx   context.Context
	ctxMu sync.RWMutex
}

type commandMessage struct {
	topic   string
	payload []byte
}

// NewCommandHandler creates a command handler.
func NewCommandHandler(deps CommandHandlerDeps) *CommandHandler {
	clock := deps.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &CommandHandler{
		transport: deps.Transport,
		importer:  deps.Importer,
		syncer:    deps.Syncer,
		poller:    deps.Poller,
		uptime:    deps.Uptime,
		devices:   deps.Devices,
		clock:     clock,
		logger:    noopLogger{},
		queue:     make(chan commandMessage, commandQueueSize),
		ctx:       context.Background(),
	}
}

// SetLogger sets the logger for the handler.
func (h *CommandHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// Start subscribes to the command topics. Commands run under ctx once Run
// drains them.
func (h *CommandHandler) Start(ctx context.Context) error {
	h.ctxMu.Lock()
	h.ctx = ctx
	h.ctxMu.Unlock()

	topic := h.topics.AllCommands()
	if err := h.transport.Subscribe(topic, 1, h.Enqueue); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	h.logger.Info("subscribed to commands", "topic", topic)
	return nil
}

// Stop unsubscribes from the command topics.
func (h *CommandHandler) Stop() {
	if err := h.transport.Unsubscribe(h.topics.AllCommands()); err != nil {
		h.logger.Warn("unsubscribing from commands", "error", err)
	}
}

// Run starts the handler and executes queued commands in arrival order
// until ctx is cancelled, then stops it. Commands still queued at that
// point are dropped.
func (h *CommandHandler) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}
	defer h.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-h.queue:
			if err := h.HandleMessage(msg.topic, msg.payload); err != nil {
				h.logger.Warn("command failed", "topic", msg.topic, "error", err)
			}
		}
	}
}

// Enqueue implements mqtt.MessageHandler. It never blocks: when the queue
// is full the command is rejected with ErrCommandQueueFull.
func (h *CommandHandler) Enqueue(topic string, payload []byte) error {
	select {
	case h.queue <- commandMessage{topic: topic, payload: payload}:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrCommandQueueFull, topic)
	}
}

// HandleMessage executes one command and publishes its response.
//
// Run calls it for each queued message and logs the returned error. The requester always
// gets a response unless the response itself cannot be published.
func (h *CommandHandler) HandleMessage(topic string, payload []byte) error {
	action, ok := mqtt.CommandAction(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrUnknownCommand, topic)
	}

	ctx, cancel := context.WithTimeout(h.context(), commandTimeout)
	defer cancel()

	resp := h.Execute(ctx, action, payload)
	if err := h.transport.PublishJSON(h.topics.Response(action), resp, false); err != nil {
		return fmt.Errorf("publishing %s response: %w", action, err)
	}
	return nil
}

// Execute decodes and runs one command.
func (h *CommandHandler) Execute(ctx context.Context, action string, payload []byte) CommandResponse {
	var req CommandRequest
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return h.failed(CommandResponse{Action: action}, fmt.Errorf("%w: %w", ErrInvalidCommand, err))
		}
	}

	resp := CommandResponse{ID: req.ID, Action: action}
	h.logger.Info("received command", "action", action, "id", req.ID)

	switch action {
	case CommandImport:
		return h.runImport(ctx, req, resp)
	case CommandSync:
		return h.runSync(ctx, req, resp)
	case CommandPoll:
		return h.runPoll(ctx, resp)
	case CommandUptime:
		return h.runUptime(ctx, req, resp)
	default:
		return h.failed(resp, fmt.Errorf("%w: %s", ErrUnknownCommand, action))
	}
}

func (h *CommandHandler) runImport(ctx context.Context, req CommandRequest, resp CommandResponse) CommandResponse {
	var result ImportResult
	var err error
	if len(req.Candidates) > 0 {
		result, err = h.importer.ImportDevices(ctx, req.Candidates)
	} else {
		result, err = h.importer.ImportFromRemote(ctx)
	}
	resp.Import = &result
	if err != nil {
		return h.failed(resp, err)
	}
	return h.succeeded(resp)
}

func (h *CommandHandler) runSync(ctx context.Context, req CommandRequest, resp CommandResponse) CommandResponse {
	if req.IP == "" {
		resp.Sync = h.syncer.SyncAll(ctx)
		for _, r := range resp.Sync {
			if !r.Success {
				resp.Category = r.Category
				resp.Error = fmt.Sprintf("%d of %d devices failed to sync", countFailed(resp.Sync), len(resp.Sync))
				resp.At = h.clock.Now().UTC()
				return resp
			}
		}
		return h.succeeded(resp)
	}

	d, failure, ok := h.lookup(ctx, req.IP, resp)
	if !ok {
		return failure
	}

	previousIP := device.NormaliseIP(req.PreviousIP)
	if previousIP == d.IP {
		previousIP = ""
	}
	result := h.syncer.SyncDevice(ctx, d, previousIP)
	resp.Sync = []SyncResult{result}
	if !result.Success {
		resp.Error = result.Message
		resp.Category = result.Category
		resp.At = h.clock.Now().UTC()
		return resp
	}
	return h.succeeded(resp)
}

func (h *CommandHandler) runPoll(ctx context.Context, resp CommandResponse) CommandResponse {
	report, err := h.poller.Poll(ctx)
	resp.Poll = &report
	if err != nil {
		return h.failed(resp, err)
	}
	return h.succeeded(resp)
}

func (h *CommandHandler) runUptime(ctx context.Context, req CommandRequest, resp CommandResponse) CommandResponse {
	if req.IP == "" {
		return h.failed(resp, fmt.Errorf("%w: uptime needs an ip", ErrInvalidCommand))
	}
	if h.uptime == nil {
		return h.failed(resp, fmt.Errorf("%w: %s", ErrUnknownCommand, CommandUptime))
	}

	d, failure, ok := h.lookup(ctx, req.IP, resp)
	if !ok {
		return failure
	}

	window := defaultUptimeWindow
	if req.WindowSeconds > 0 {
		window = time.Duration(req.WindowSeconds) * time.Second
	}
	u, err := h.uptime.DeviceUptime(ctx, d.ID, window)
	if err != nil {
		return h.failed(resp, err)
	}
	resp.Uptime = &u
	return h.succeeded(resp)
}

// lookup resolves ip to a stored device. On failure it returns the failed
// response and ok=false.
func (h *CommandHandler) lookup(ctx context.Context, ip string, resp CommandResponse) (*device.Device, CommandResponse, bool) {
	d, err := h.devices.GetByIP(ctx, device.NormaliseIP(ip))
	if err != nil {
		category := CategoryStore
		if errors.Is(err, device.ErrDeviceNotFound) {
			category = mikrotik.CategoryUnclassified
		}
		resp = h.failed(resp, err)
		resp.Category = category
		return nil, resp, false
	}
	return d, resp, true
}

func (h *CommandHandler) succeeded(resp CommandResponse) CommandResponse {
	resp.Success = true
	resp.At = h.clock.Now().UTC()
	return resp
}

func (h *CommandHandler) failed(resp CommandResponse, err error) CommandResponse {
	c := mikrotik.Classify(err)
	resp.Success = false
	resp.Error = c.Message
	resp.Category = c.Category
	resp.At = h.clock.Now().UTC()
	h.logger.Warn("command failed", "action", resp.Action, "id", resp.ID, "category", c.Category, "error", err)
	return resp
}

func (h *CommandHandler) context() context.Context {
	h.ctxMu.RLock()
	defer h.ctxMu.RUnlock()
	return h.ctx
}

func countFailed(results []SyncResult) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}
