package call

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/voxgate/voxgate/internal/esl"
	"github.com/voxgate/voxgate/internal/voxerr"
)

type fakeEngine struct {
	sent    []string
	bgSent  []string
	sendErr error
	bgRes   esl.BackgroundResult
}

func (f *fakeEngine) Send(_ context.Context, command string) (*esl.Frame, error) {
	f.sent = append(f.sent, command)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &esl.Frame{Headers: map[string]string{"Reply-Text": "+OK"}}, nil
}

func (f *fakeEngine) SendBackground(command string) (string, <-chan esl.BackgroundResult, error) {
	f.bgSent = append(f.bgSent, command)
	ch := make(chan esl.BackgroundResult, 1)
	ch <- f.bgRes
	return "job-1", ch, nil
}

func testController(engine *fakeEngine) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewController(engine, logger)
}

func TestControllerVerbs(t *testing.T) {
	engine := &fakeEngine{}
	c := testController(engine)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() error
		want string
	}{
		{"hangup default cause", func() error { return c.Hangup(ctx, "u1", "") }, "uuid_kill u1 NORMAL_CLEARING"},
		{"hangup explicit cause", func() error { return c.Hangup(ctx, "u1", "CALL_REJECTED") }, "uuid_kill u1 CALL_REJECTED"},
		{"transfer", func() error { return c.Transfer(ctx, "u1", "1002") }, "uuid_transfer u1 1002"},
		{"hold", func() error { return c.Hold(ctx, "u1") }, "uuid_hold u1"},
		{"unhold", func() error { return c.Unhold(ctx, "u1") }, "uuid_hold off u1"},
		{"park", func() error { return c.Park(ctx, "u1") }, "uuid_park u1"},
		{"mute", func() error { return c.Mute(ctx, "u1") }, "uuid_audio u1 start write mute -4"},
		{"unmute", func() error { return c.Unmute(ctx, "u1") }, "uuid_audio u1 stop"},
		{"record start", func() error { return c.RecordStart(ctx, "u1", "/tmp/rec.wav") }, "uuid_record u1 start /tmp/rec.wav"},
		{"record stop", func() error { return c.RecordStop(ctx, "u1", "/tmp/rec.wav") }, "uuid_record u1 stop /tmp/rec.wav"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine.sent = nil
			if err := tc.call(); err != nil {
				t.Fatalf("error: %v", err)
			}
			if len(engine.sent) != 1 || engine.sent[0] != tc.want {
				t.Errorf("sent %v, want [%q]", engine.sent, tc.want)
			}
		})
	}
}

func TestControllerValidation(t *testing.T) {
	c := testController(&fakeEngine{})
	ctx := context.Background()

	if err := c.Transfer(ctx, "u1", ""); !voxerr.IsValidation(err) {
		t.Errorf("Transfer without destination: %v", err)
	}
	if err := c.RecordStart(ctx, "u1", ""); !voxerr.IsValidation(err) {
		t.Errorf("RecordStart without path: %v", err)
	}
	if _, err := c.Originate(ctx, OriginateRequest{}); !voxerr.IsValidation(err) {
		t.Errorf("Originate without fields: %v", err)
	}
}

func TestControllerSendErrorPassesThrough(t *testing.T) {
	engine := &fakeEngine{sendErr: voxerr.ErrNotConnected}
	c := testController(engine)

	if err := c.Hangup(context.Background(), "u1", ""); !errors.Is(err, voxerr.ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestControllerOriginate(t *testing.T) {
	engine := &fakeEngine{bgRes: esl.BackgroundResult{Body: "+OK abc"}}
	c := testController(engine)

	callUUID, err := c.Originate(context.Background(), OriginateRequest{
		CallerExtension: "1001",
		Destination:     "0591234567",
		Domain:          "acme.example",
		Context:         "acme-outbound",
	})
	if err != nil {
		t.Fatalf("Originate() error: %v", err)
	}
	if callUUID == "" {
		t.Error("Originate() returned empty call uuid")
	}
	if len(engine.bgSent) != 1 {
		t.Fatalf("bgapi commands sent = %d, want 1", len(engine.bgSent))
	}
	cmd := engine.bgSent[0]
	for _, frag := range []string{
		"originate {origination_uuid=" + callUUID,
		"originate_timeout=30",
		"origination_caller_id_number=1001",
		"user/1001@acme.example 0591234567 XML acme-outbound",
	} {
		if !strings.Contains(cmd, frag) {
			t.Errorf("command %q missing %q", cmd, frag)
		}
	}
}

func TestControllerOriginateEngineError(t *testing.T) {
	engine := &fakeEngine{bgRes: esl.BackgroundResult{Err: errors.New("-ERR NO_ROUTE_DESTINATION")}}
	c := testController(engine)

	_, err := c.Originate(context.Background(), OriginateRequest{
		CallerExtension: "1001",
		Destination:     "9999",
		Domain:          "acme.example",
	})
	if err == nil || !strings.Contains(err.Error(), "NO_ROUTE_DESTINATION") {
		t.Errorf("error = %v, want engine failure", err)
	}
}
