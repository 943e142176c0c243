package main

import (
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/jxo-me/ddnsd/core/logger"
)

// sdNotify tells systemd about a state change. Outside of a notify unit it
// is a no-op.
func sdNotify(log logger.ILogger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warnf("sd_notify %s: %v", state, err)
		return
	}
	if sent {
		log.Debugf("sd_notify %s sent", state)
	}
}

func notifyReady(log logger.ILogger) {
	sdNotify(log, daemon.SdNotifyReady)
}

func notifyStopping(log logger.ILogger) {
	sdNotify(log, daemon.SdNotifyStopping)
}
