package call

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/esl"
	"github.com/voxgate/voxgate/internal/voxerr"
)

// CommandSender is the slice of the engine client the controller needs.
type CommandSender interface {
	Send(ctx context.Context, command string) (*esl.Frame, error)
	SendBackground(command string) (string, <-chan esl.BackgroundResult, error)
}

// Controller turns call-control verbs into engine commands. Foreground
// uuid_* commands resolve against the reply queue; originate runs in the
// background and is correlated by Job-UUID.
type Controller struct {
	engine CommandSender
	logger *slog.Logger
}

// NewController creates a Controller over the given engine connection.
func NewController(engine CommandSender, logger *slog.Logger) *Controller {
	return &Controller{
		engine: engine,
		logger: logger.With("component", "control"),
	}
}

// OriginateRequest describes a new outbound leg.
type OriginateRequest struct {
	CallerExtension string
	Destination     string
	Domain          string
	Context         string // dialplan context for the B-leg, default "default"
	CallerID        string // effective caller id, default CallerExtension
	TimeoutSec      int    // ring timeout, default 30
}

func (r *OriginateRequest) validate() error {
	if r.CallerExtension == "" {
		return voxerr.Validationf("caller_extension", "caller extension is required")
	}
	if r.Destination == "" {
		return voxerr.Validationf("destination", "destination is required")
	}
	if r.Domain == "" {
		return voxerr.Validationf("domain", "domain is required")
	}
	return nil
}

// Originate starts a call from an extension to a destination and waits for
// the engine's background job to resolve. It returns the new call UUID.
func (c *Controller) Originate(ctx context.Context, req OriginateRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	callUUID := uuid.NewString()
	timeout := req.TimeoutSec
	if timeout <= 0 {
		timeout = 30
	}
	callerID := req.CallerID
	if callerID == "" {
		callerID = req.CallerExtension
	}
	dialContext := req.Context
	if dialContext == "" {
		dialContext = "default"
	}

	cmd := fmt.Sprintf(
		"originate {origination_uuid=%s,originate_timeout=%d,origination_caller_id_number=%s}user/%s@%s %s XML %s",
		callUUID, timeout, callerID,
		req.CallerExtension, req.Domain,
		req.Destination, dialContext,
	)

	jobID, done, err := c.engine.SendBackground(cmd)
	if err != nil {
		return "", err
	}
	c.logger.Info("originate submitted",
		"call_uuid", callUUID, "job_uuid", jobID,
		"caller", req.CallerExtension, "destination", req.Destination)

	select {
	case res := <-done:
		if res.Err != nil {
			return "", fmt.Errorf("originate failed: %w", res.Err)
		}
		return callUUID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Hangup terminates a call. An empty cause defaults to NORMAL_CLEARING.
func (c *Controller) Hangup(ctx context.Context, callUUID, cause string) error {
	if cause == "" {
		cause = "NORMAL_CLEARING"
	}
	return c.run(ctx, fmt.Sprintf("uuid_kill %s %s", callUUID, cause))
}

// Transfer moves a call to another destination in its current context.
func (c *Controller) Transfer(ctx context.Context, callUUID, destination string) error {
	if destination == "" {
		return voxerr.Validationf("destination", "destination is required")
	}
	return c.run(ctx, fmt.Sprintf("uuid_transfer %s %s", callUUID, destination))
}

// Hold places a call on hold.
func (c *Controller) Hold(ctx context.Context, callUUID string) error {
	return c.run(ctx, fmt.Sprintf("uuid_hold %s", callUUID))
}

// Unhold resumes a held call.
func (c *Controller) Unhold(ctx context.Context, callUUID string) error {
	return c.run(ctx, fmt.Sprintf("uuid_hold off %s", callUUID))
}

// Park parks a call.
func (c *Controller) Park(ctx context.Context, callUUID string) error {
	return c.run(ctx, fmt.Sprintf("uuid_park %s", callUUID))
}

// Mute silences the caller's audio towards the bridge.
func (c *Controller) Mute(ctx context.Context, callUUID string) error {
	return c.run(ctx, fmt.Sprintf("uuid_audio %s start write mute -4", callUUID))
}

// Unmute restores the caller's audio.
func (c *Controller) Unmute(ctx context.Context, callUUID string) error {
	return c.run(ctx, fmt.Sprintf("uuid_audio %s stop", callUUID))
}

// RecordStart begins recording a call to the given path.
func (c *Controller) RecordStart(ctx context.Context, callUUID, path string) error {
	if path == "" {
		return voxerr.Validationf("path", "recording path is required")
	}
	return c.run(ctx, fmt.Sprintf("uuid_record %s start %s", callUUID, path))
}

// RecordStop stops recording a call.
func (c *Controller) RecordStop(ctx context.Context, callUUID, path string) error {
	if path == "" {
		return voxerr.Validationf("path", "recording path is required")
	}
	return c.run(ctx, fmt.Sprintf("uuid_record %s stop %s", callUUID, path))
}

func (c *Controller) run(ctx context.Context, cmd string) error {
	if _, err := c.engine.Send(ctx, cmd); err != nil {
		return err
	}
	c.logger.Info("engine command ok", "command", cmd)
	return nil
}
