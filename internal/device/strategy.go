package device

import (
	"context"
	"time"
)

// Strategy applies a canonical state to a handler: transmit (unless
// observing) and persist every affected path.
type Strategy func(u *update, h *SubDevice, state string) error

type handlerSpec struct {
	name    string
	states  []string
	aliases map[string]string
	apply   Strategy
}

// update carries one SetState or Observe call through a strategy.
type update struct {
	ctx      context.Context
	d        *Device
	transmit bool
	source   Source
}

func (u *update) send(command string) error {
	if !u.transmit {
		return nil
	}
	return u.d.tx.Transmit(u.ctx, command)
}

func (u *update) get(sub string) (string, bool) {
	return u.d.read(u.ctx, u.d.path(sub))
}

func (u *update) set(sub, state string) {
	path := u.d.path(sub)
	if err := u.d.store.Set(u.ctx, path, state); err != nil {
		u.d.logger.Warn("persisting state failed", "path", path, "error", err)
	}
	if u.d.notifier != nil {
		u.d.notifier.Publish(u.ctx, Event{
			Path:      path,
			Class:     u.d.class,
			Device:    u.d.name,
			SubDevice: sub,
			State:     state,
			Source:    u.source,
			Time:      time.Now().UTC(),
		})
	}
}

// applyDirect transmits the state as the command and stores it.
func applyDirect(u *update, h *SubDevice, state string) error {
	if err := u.send(state); err != nil {
		return err
	}
	u.set(h.name, state)
	return nil
}

// applyFanPower resumes the last speed on ON, defaulting to 1.
func applyFanPower(u *update, _ *SubDevice, state string) error {
	if state == "OFF" {
		return fanOff(u)
	}
	speed := speedStates[0]
	if s, ok := u.get(SubSpeed); ok && contains(speedStates, s) {
		speed = s
	}
	return fanSpeed(u, speed)
}

// applyFanSpeed implies power ON.
func applyFanSpeed(u *update, _ *SubDevice, state string) error {
	return fanSpeed(u, state)
}

// applyFanCommand treats "0" as power OFF and anything else as a speed.
func applyFanCommand(u *update, _ *SubDevice, state string) error {
	if state == "0" {
		return fanOff(u)
	}
	return fanSpeed(u, state)
}

func fanOff(u *update) error {
	if err := u.send("0"); err != nil {
		return err
	}
	u.set(SubPower, "OFF")
	u.set(SubCommand, "0")
	u.set("", "OFF")
	return nil
}

func fanSpeed(u *update, speed string) error {
	if err := u.send(speed); err != nil {
		return err
	}
	u.set(SubPower, "ON")
	u.set(SubSpeed, speed)
	u.set(SubCommand, speed)
	u.set("", "ON")
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
